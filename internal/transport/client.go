// Package transport provides the outbound HTTP client for the foodscan
// engine. It attaches standard headers and bearer credentials, normalizes
// failures into user-facing errors, and reports per-request observations.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/foodscan/internal/config"
)

// ErrInvalidBaseURL is returned when the configured base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("transport: invalid base URL")

// TokenSource supplies the current access token for authenticated requests.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// Observer receives one observation per completed request. A zero status
// means the request failed before any response was received.
type Observer interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
}

// Client is the HTTP client for the analysis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	tokens     TokenSource
	limiter    *rate.Limiter
	observer   Observer
}

// New creates a client for the given API configuration. tokens and observer
// may be nil.
func New(cfg config.APIConfig, tokens TokenSource, observer Observer) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "foodscan-client/1.0",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    headers,
		tokens:     tokens,
		limiter:    limiter,
		observer:   observer,
	}, nil
}

// SetTokenSource installs the token source after construction. This breaks
// the construction cycle between the client and the session manager, which
// both needs the client and supplies its credentials.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// GetJSON issues a GET request and decodes the 2xx response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// PostJSON issues a POST request with a JSON body and decodes the 2xx
// response body into out. out may be nil when no body is expected.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: marshaling request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

// PostMultipart issues a POST request with a single file part and decodes
// the 2xx response body into out.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename, contentType string, blob []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return fmt.Errorf("transport: creating multipart body: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return fmt.Errorf("transport: writing multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("transport: closing multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, out)
}

// do executes one request. Non-2xx responses become *APIError; failures
// before a response become *ConnectionError (or the context's error).
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("transport: creating request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, time.Since(start))
		return classifyNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return classifyNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: messageFromBody(resp.StatusCode, respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("transport: decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) observe(method, path string, status int, duration time.Duration) {
	if c.observer != nil {
		// Strip the query so per-page values do not fan out metric labels.
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		c.observer.ObserveRequest(method, path, status, duration)
	}
}
