// Package session owns the authentication token lifecycle and the current
// user profile. The manager is the single writer of both; every other
// component reads the token through it and mutates the profile only through
// its operations.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/transport"
)

// Manager drives the session state machine:
//
//	Initializing -> Ready(unauthenticated) | Ready(authenticated)
//	Ready(authenticated) -> Ready(unauthenticated)   on logout or profile-fetch rejection
//	Ready(unauthenticated) -> Ready(authenticated)   on successful login/register
//
// No other transitions exist.
type Manager struct {
	client *transport.Client
	store  TokenStore
	log    *zap.Logger

	mu           sync.RWMutex
	token        string
	user         *UserProfile
	initializing bool
}

// NewManager creates a session manager. The manager starts in the
// Initializing state; call Initialize to reach Ready.
func NewManager(client *transport.Client, store TokenStore, log *zap.Logger) *Manager {
	return &Manager{
		client:       client,
		store:        store,
		log:          log,
		initializing: true,
	}
}

// Token returns the current access token. Implements transport.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current profile, or nil when unauthenticated.
func (m *Manager) User() *UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.clone()
}

// Authenticated reports whether a profile is present.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// Initializing reports whether the initial hydration is still in progress.
func (m *Manager) Initializing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initializing
}

// Initialize hydrates the session from the persisted token. With no stored
// token the session becomes Ready unauthenticated without a network call;
// otherwise one profile fetch decides the outcome. Initialize always leaves
// the Initializing state, success or not.
func (m *Manager) Initialize(ctx context.Context) error {
	token, err := m.store.Load()
	if err != nil {
		m.log.Warn("loading persisted token", zap.Error(err))
		token = ""
	}
	if token == "" {
		m.endInitializing()
		return nil
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	return m.fetchProfile(ctx)
}

// Login authenticates with the service. On success the returned token is
// persisted and the profile fetched; the operation is not complete until the
// profile fetch resolves. On failure nothing is persisted and the returned
// error carries the user-facing message.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	var resp authResponse
	if err := m.client.PostJSON(ctx, "/auth/login", credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	m.adoptToken(resp.AccessToken)
	return m.fetchProfile(ctx)
}

// Register creates an account. Same contract as Login; field validation is
// performed by the caller before invocation.
func (m *Manager) Register(ctx context.Context, reg Registration) error {
	var resp authResponse
	if err := m.client.PostJSON(ctx, "/auth/register", reg, &resp); err != nil {
		return err
	}
	m.adoptToken(resp.AccessToken)
	return m.fetchProfile(ctx)
}

// Logout clears the persisted token and the profile in one synchronous step.
// No network call is made.
func (m *Manager) Logout() {
	m.reset()
}

// SetAllergies replaces the profile's allergy list. Called by the allergy
// store after a successful persist. No-op when unauthenticated.
func (m *Manager) SetAllergies(allergies []Allergy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return
	}
	m.user.Allergies = append([]Allergy(nil), allergies...)
}

// IncrementScans bumps the profile's scan counter by one. The increment is
// optimistic and never reconciled against the server's count. No-op when
// unauthenticated.
func (m *Manager) IncrementScans() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return
	}
	m.user.TotalScans++
}

// TokenExpiry returns the expiry claim of the current access token. The
// token is parsed without verification: the client has no signing key and
// only needs the timestamp for display. ok is false when there is no token,
// the token is not a JWT, or it carries no expiry.
func (m *Manager) TokenExpiry() (expiry time.Time, ok bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// fetchProfile performs the authenticated profile fetch. Success replaces
// the user wholesale; any failure clears the persisted token and leaves the
// user absent. Either way the Initializing state ends.
func (m *Manager) fetchProfile(ctx context.Context) error {
	defer m.endInitializing()

	var resp profileResponse
	if err := m.client.GetJSON(ctx, "/profile", &resp); err != nil {
		m.reset()
		return err
	}

	m.mu.Lock()
	m.user = &UserProfile{
		Identity:   resp.User,
		Allergies:  resp.Allergies,
		TotalScans: resp.TotalScans,
	}
	m.mu.Unlock()
	return nil
}

// adoptToken stores the token in memory and persists it. A persist failure
// is logged but does not fail the login: the session works until restart.
func (m *Manager) adoptToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	if err := m.store.Save(token); err != nil {
		m.log.Warn("persisting token", zap.Error(err))
	}
}

// reset drops the token (memory and store) and the profile. An absent token
// implies an absent user, so both are cleared together.
func (m *Manager) reset() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn("clearing persisted token", zap.Error(err))
	}
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
}

func (m *Manager) endInitializing() {
	m.mu.Lock()
	m.initializing = false
	m.mu.Unlock()
}
