// Package scan drives the image-analysis pipeline: validate and select an
// image, submit it for remote inference, adopt the result, and fan out the
// side effects (scan counter, history refresh).
package scan

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/transport"
)

// MaxImageBytes is the largest accepted image size.
const MaxImageBytes = 10_485_760

// Errors returned by the scan package.
var (
	// ErrNotAnImage is returned when the selected file is not an image.
	ErrNotAnImage = errors.New("scan: file must be an image")
	// ErrImageTooLarge is returned when the selected file exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("scan: image exceeds the 10MB limit")
	// ErrNoImage is returned by Analyze when no image is selected.
	ErrNoImage = errors.New("scan: no image selected")
	// ErrAnalyzeInFlight is returned by Analyze while a previous analysis is
	// still running.
	ErrAnalyzeInFlight = errors.New("scan: analysis already in progress")
)

// State is the orchestrator's position in the scan pipeline.
type State int

const (
	StateIdle State = iota
	StateImageSelected
	StateAnalyzing
	StateResultReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageSelected:
		return "image_selected"
	case StateAnalyzing:
		return "analyzing"
	case StateResultReady:
		return "result_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Image is a selected photo awaiting analysis.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Counter receives the optimistic scan-count bump after a successful
// analysis. Satisfied by the session manager.
type Counter interface {
	IncrementScans()
}

// Refresher is triggered exactly once after each successful analysis.
// Satisfied by the history cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Orchestrator owns the scan-result and nutrition state and sequences the
// analyze pipeline. Exactly one analysis may be in flight at a time.
type Orchestrator struct {
	client    *transport.Client
	counter   Counter
	refresher Refresher
	log       *zap.Logger

	mu        sync.Mutex
	state     State
	image     *Image
	preview   string
	result    *Result
	nutrition *Nutrition
	analyzing bool
	cancel    context.CancelFunc
}

// NewOrchestrator creates a scan orchestrator.
func NewOrchestrator(client *transport.Client, counter Counter, refresher Refresher, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		counter:   counter,
		refresher: refresher,
		log:       log,
		state:     StateIdle,
	}
}

// SelectImage validates and stores the image, derives its preview data URL,
// and clears any prior result and nutrition state. Rejection leaves the
// current selection untouched. Selecting while an analysis is in flight
// cancels that analysis; its eventual response is discarded.
func (o *Orchestrator) SelectImage(img Image) error {
	if !strings.HasPrefix(img.ContentType, "image/") {
		return ErrNotAnImage
	}
	if len(img.Data) > MaxImageBytes {
		return ErrImageTooLarge
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	stored := img
	stored.Data = append([]byte(nil), img.Data...)
	o.image = &stored
	o.preview = dataURL(img.ContentType, stored.Data)
	o.result = nil
	o.nutrition = nil
	o.state = StateImageSelected
	return nil
}

// Analyze submits the selected image for remote analysis. It returns
// ErrNoImage or ErrAnalyzeInFlight without touching any state when the
// pipeline is not ready. On success the result is replaced wholesale, the
// nutrition slot extracted, the scan counter bumped by exactly one, and one
// history refresh triggered (its failure is logged, not surfaced). On
// failure every piece of prior state is left unchanged.
func (o *Orchestrator) Analyze(ctx context.Context) error {
	o.mu.Lock()
	if o.image == nil {
		o.mu.Unlock()
		return ErrNoImage
	}
	if o.analyzing {
		o.mu.Unlock()
		return ErrAnalyzeInFlight
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.analyzing = true
	o.cancel = cancel
	prev := o.state
	o.state = StateAnalyzing
	img := *o.image
	o.mu.Unlock()
	defer cancel()

	var res Result
	err := o.client.PostMultipart(runCtx, "/analyze-food", "image", img.Name, img.ContentType, img.Data, &res)

	o.mu.Lock()
	o.analyzing = false
	if o.cancel != nil {
		o.cancel = nil
	}
	if err != nil {
		// A superseding SelectImage already moved the state machine on;
		// otherwise restore the pre-analysis state so a prior result stays
		// displayed.
		if o.state == StateAnalyzing {
			o.state = prev
		}
		o.mu.Unlock()
		return err
	}
	if runCtx.Err() != nil {
		// Superseded after the response arrived; the result is stale.
		o.mu.Unlock()
		return runCtx.Err()
	}
	o.result = &res
	o.nutrition = res.Nutrition
	o.state = StateResultReady
	o.mu.Unlock()

	o.counter.IncrementScans()
	if err := o.refresher.Refresh(ctx); err != nil {
		o.log.Warn("refreshing scan history", zap.Error(err))
	}
	return nil
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.analyzing {
		return StateAnalyzing
	}
	return o.state
}

// SelectedImage returns the name of the current selection, or "".
func (o *Orchestrator) SelectedImage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.image == nil {
		return ""
	}
	return o.image.Name
}

// Preview returns the data URL of the current selection, or "".
func (o *Orchestrator) Preview() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.preview
}

// Result returns the current scan result, or nil. The result is immutable
// once received.
func (o *Orchestrator) Result() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Nutrition returns the nutrition bundle of the current result, or nil when
// the service provided none.
func (o *Orchestrator) Nutrition() *Nutrition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nutrition
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
