// Package session holds the client's view of "who am I": a
// cookie-backed identity plus the auth operations that mutate it.
// Components that must follow the authenticated/unauthenticated
// transition (the real-time bridge, the view router) register
// listeners instead of polling.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
)

// Listener observes session transitions. authenticated reports the
// state after the change; user is nil when unauthenticated.
type Listener func(authenticated bool, user *model.AuthUser)

// Manager owns the current session identity. All auth operations wrap
// exactly one API call and re-throw only the normalized error
// message.
type Manager struct {
	mu        sync.Mutex
	api       *api.Client
	log       *zap.Logger
	user      *model.AuthUser
	listeners []Listener
}

// New creates an unauthenticated manager.
func New(client *api.Client, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: client, log: log}
}

// OnChange registers a listener for authentication transitions.
// Listeners run synchronously on the goroutine performing the change.
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// User returns a copy of the current identity, or nil.
func (m *Manager) User() *model.AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a session identity is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// Resolve eagerly derives the identity from the existing session
// cookie. Failure means "not authenticated", never a fatal error.
func (m *Manager) Resolve(ctx context.Context) {
	user, err := m.api.Profile(ctx)
	if err != nil {
		m.log.Debug("no existing session", zap.Error(err))
		m.setUser(nil)
		return
	}
	m.setUser(user)
}

// Login authenticates and populates the identity directly from the
// response body; no extra round trip.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	user, err := m.api.Login(ctx, email, password)
	if err != nil {
		return normalize(err)
	}
	m.setUser(user)
	return nil
}

// Register creates an account. Session identity is unchanged; the
// user must verify via OTP before logging in.
func (m *Manager) Register(ctx context.Context, email, password, name string) error {
	if err := m.api.Register(ctx, email, password, name); err != nil {
		return normalize(err)
	}
	return nil
}

// Logout ends the server session and clears the identity.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		return normalize(err)
	}
	m.setUser(nil)
	return nil
}

// VerifyOTP confirms the emailed code and, like Login, populates the
// identity from the response.
func (m *Manager) VerifyOTP(ctx context.Context, email, otp string) error {
	user, err := m.api.VerifyOTP(ctx, email, otp)
	if err != nil {
		return normalize(err)
	}
	m.setUser(user)
	return nil
}

// ResendOTP requests a fresh verification code. Identity unchanged.
func (m *Manager) ResendOTP(ctx context.Context, email string) error {
	if err := m.api.ResendOTP(ctx, email); err != nil {
		return normalize(err)
	}
	return nil
}

// ForgotPassword starts the reset flow. Identity unchanged.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	if err := m.api.ForgotPassword(ctx, email); err != nil {
		return normalize(err)
	}
	return nil
}

// ResetPassword completes the reset flow. Identity unchanged.
func (m *Manager) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if err := m.api.ResetPassword(ctx, email, otp, newPassword); err != nil {
		return normalize(err)
	}
	return nil
}

// Refresh re-derives the identity on demand. A failure clears it.
func (m *Manager) Refresh(ctx context.Context) error {
	user, err := m.api.Profile(ctx)
	if err != nil {
		m.setUser(nil)
		return normalize(err)
	}
	m.setUser(user)
	return nil
}

// SetUser replaces the identity locally without an API call, e.g.
// after a profile update already returned the fresh projection.
func (m *Manager) SetUser(user *model.AuthUser) {
	m.setUser(user)
}

// ForceLogout clears the identity without calling the API. Used by
// the auth-loss hard reset, where the server already considers the
// session dead.
func (m *Manager) ForceLogout() {
	m.setUser(nil)
}

// setUser swaps the identity and notifies listeners when the
// authenticated/unauthenticated state flips.
func (m *Manager) setUser(user *model.AuthUser) {
	m.mu.Lock()
	wasAuth := m.user != nil
	m.user = user
	isAuth := user != nil
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if wasAuth == isAuth {
		return
	}
	for _, l := range listeners {
		l(isAuth, user)
	}
}

// normalize strips an API failure down to its single human-readable
// message.
func normalize(err error) error {
	return errors.New(api.ErrorMessage(err))
}
