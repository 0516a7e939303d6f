package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"golang.org/x/oauth2"
)

const defaultRefreshInterval = 45 * time.Minute

// AuthAPI is the subset of the backend the manager talks to.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, opts interceptor.Options) (*models.User, error)
	Logout(ctx context.Context) error
}

// Credentials is the credential state of the HTTP client.
type Credentials interface {
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	Token() *oauth2.Token
	SetToken(accessToken, tokenType string)
	ClearCredentials()
}

// State is a point-in-time view of the session.
type State struct {
	User            *models.User
	IsAuthenticated bool
	IsLoading       bool
}

// Manager is the single owner of session state.
type Manager struct {
	api      AuthAPI
	creds    Credentials
	store    *Store
	interval time.Duration
	logger   *log.Logger

	mu        sync.RWMutex
	user      *models.User
	loading   bool
	stop      chan struct{}
	timers    int
	listeners []func(State)
}

// Option configures a [Manager].
type Option func(*Manager)

// WithStore persists the session to s.
func WithStore(s *Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithRefreshInterval sets the refresh timer period. Non-positive values keep the default.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager in the loading state with no user.
func NewManager(api AuthAPI, creds Credentials, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		creds:    creds,
		interval: defaultRefreshInterval,
		logger:   shared.NewDiscardLogger(),
		loading:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	s := State{IsLoading: m.loading, IsAuthenticated: m.user != nil}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// OnChange registers fn to be called with the new state after every transition.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ActiveTimers returns the number of running refresh timers: 0 or 1.
func (m *Manager) ActiveTimers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timers
}

// Login signs in, starts the refresh timer, and persists the session.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	m.establish(&resp.User)
	return m.State().User, nil
}

// Register creates an account and signs in as it.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	m.establish(&resp.User)
	return m.State().User, nil
}

// Init performs the silent session check. The manager leaves the loading state whatever the outcome.
//
// An unauthenticated result is not an error; transport and server failures are returned.
func (m *Manager) Init(ctx context.Context) error {
	user, err := m.api.Me(ctx, interceptor.Options{SkipAuth: true})
	if err != nil {
		m.mu.Lock()
		m.user = nil
		m.loading = false
		m.mu.Unlock()
		m.notify()

		if interceptor.IsUnauthorized(err) {
			m.logger.Debug("no active session")
			return nil
		}
		return err
	}

	m.establish(user)
	return nil
}

// Restore loads persisted credentials into the client and validates them with [Manager.Init].
func (m *Manager) Restore(ctx context.Context) error {
	if m.store != nil {
		snap, err := m.store.Load()
		switch {
		case err == nil:
			if len(snap.Cookies) > 0 {
				m.creds.SetCookies(snap.Cookies)
			}
			if snap.AccessToken != "" {
				m.creds.SetToken(snap.AccessToken, snap.TokenType)
			}
		case errors.Is(err, shared.ErrNotAuthenticated):
		default:
			m.logger.Warn("ignoring unreadable session", "path", m.store.Path(), "error", err)
		}
	}
	return m.Init(ctx)
}

// Logout stops the refresh timer, forgets the user, and clears credentials locally and on disk.
//
// It does not contact the backend; see [Manager.SignOut].
func (m *Manager) Logout() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	m.clear()
}

func (m *Manager) resetLocked() {
	m.stopTimerLocked()
	m.user = nil
	m.loading = false
}

func (m *Manager) clear() {
	m.creds.ClearCredentials()
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("failed to clear persisted session", "error", err)
		}
	}
	m.notify()
}

// SignOut asks the backend to end the session, then logs out locally even if that request fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.api.Logout(ctx)
	if err != nil {
		m.logger.Warn("backend logout failed", "error", err)
	}
	m.Logout()
	return err
}

// Close stops the refresh timer without touching the session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) establish(user *models.User) {
	m.mu.Lock()
	m.user = user
	m.loading = false
	m.startTimerLocked()
	m.mu.Unlock()

	m.persist()
	m.notify()
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}

	snap := Snapshot{User: m.State().User, Cookies: m.creds.Cookies()}
	if tok := m.creds.Token(); tok != nil {
		snap.AccessToken = tok.AccessToken
		snap.TokenType = tok.TokenType
	}
	if err := m.store.Save(snap); err != nil {
		m.logger.Warn("failed to persist session", "error", err)
	}
}

func (m *Manager) notify() {
	m.mu.RLock()
	state := m.stateLocked()
	listeners := append([]func(State){}, m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (m *Manager) startTimerLocked() {
	m.stopTimerLocked()

	stop := make(chan struct{})
	m.stop = stop
	m.timers++
	go m.refreshLoop(stop)
}

func (m *Manager) stopTimerLocked() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
	m.timers--
}

func (m *Manager) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !m.refresh(stop) {
				return
			}
		}
	}
}

// refresh re-validates the session. On failure it logs out, unless the timer was replaced in the meantime.
func (m *Manager) refresh(stop <-chan struct{}) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	user, err := m.api.Me(ctx, interceptor.Options{})

	m.mu.Lock()
	current := m.stop == stop
	switch {
	case !current:
	case err != nil:
		m.resetLocked()
	default:
		m.user = user
	}
	m.mu.Unlock()

	if !current {
		return false
	}
	if err != nil {
		m.logger.Warn("session refresh failed, logging out", "error", err)
		m.clear()
		return false
	}

	m.logger.Debug("session refreshed", "user", user.Email)
	m.notify()
	return true
}
