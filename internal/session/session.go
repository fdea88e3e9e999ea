// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session owns the authenticated-session lifecycle for stateful
// sources. Implements: prd011-session (R2);
//
//	docs/ARCHITECTURE § Session Manager.
//
// One manager guards one source for one job. All access is serialized:
// the portal allows a single live session, so two concurrent queries
// under it would invalidate each other.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/patent-scout/internal/source"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// State of the login state machine. Retry-and-fallback is modeled as
// explicit states rather than nested error handling.
type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateAuthenticated    State = "authenticated"
	StateExpired          State = "expired"
	StateReAuthenticating State = "reauthenticating"
	StateFailed           State = "failed"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
	defaultMinInterval = time.Second
)

// Manager serializes access to one stateful source's session and
// re-authenticates transparently on expiry. StateFailed is terminal: once
// login attempts are exhausted every later call returns the same
// authentication error.
type Manager struct {
	conn source.StatefulConnector
	cfg  types.SessionConfig

	mu        sync.Mutex
	state     State
	sess      *source.Session
	lastLogin time.Time
	authErr   error
}

// NewManager returns a manager for conn in the unauthenticated state;
// the first WithSession call logs in.
func NewManager(conn source.StatefulConnector, cfg types.SessionConfig) *Manager {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = defaultMaxAttempts
	}
	if cfg.LoginBackoff <= 0 {
		cfg.LoginBackoff = defaultBackoff
	}
	if cfg.MinLoginInterval <= 0 {
		cfg.MinLoginInterval = defaultMinInterval
	}
	return &Manager{conn: conn, cfg: cfg, state: StateUnauthenticated}
}

// State returns a snapshot of the state machine.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WithSession runs op under a valid session. Concurrent callers queue on
// the manager's lock. If op reports session expiry, the manager
// re-authenticates and retries op exactly once; a second expiry
// propagates to the caller.
func (m *Manager) WithSession(ctx context.Context, op func(*source.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateFailed {
		return m.authErr
	}
	if m.sess == nil {
		if err := m.loginLocked(ctx); err != nil {
			return err
		}
	}

	err := op(m.sess)
	if err == nil || !source.IsSessionExpired(err) {
		return err
	}

	m.state = StateExpired
	m.sess = nil
	if lerr := m.loginLocked(ctx); lerr != nil {
		return lerr
	}
	return op(m.sess)
}

// Invalidate drops the live session so the next call re-authenticates.
// Used by the scheduler when a whole batch is requeued.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFailed {
		m.sess = nil
		m.state = StateExpired
	}
}

// loginLocked drives the bounded login loop. Caller holds m.mu.
func (m *Manager) loginLocked(ctx context.Context) error {
	m.state = StateReAuthenticating

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxLoginAttempts; attempt++ {
		// Throttle logins so an expiry loop cannot lock the account out.
		if wait := m.cfg.MinLoginInterval - time.Since(m.lastLogin); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				m.state = StateExpired
				return err
			}
		}

		m.lastLogin = time.Now()
		sess, err := m.conn.Login(ctx)
		if err == nil {
			m.sess = sess
			m.state = StateAuthenticated
			return nil
		}
		lastErr = err

		if attempt < m.cfg.MaxLoginAttempts-1 {
			backoff := m.cfg.LoginBackoff << attempt
			if err := sleepCtx(ctx, backoff); err != nil {
				m.state = StateExpired
				return err
			}
		}
	}

	m.state = StateFailed
	if ae, ok := lastErr.(*source.AuthError); ok {
		m.authErr = ae
	} else {
		m.authErr = &source.AuthError{
			Source: m.conn.Name(),
			Err:    fmt.Errorf("%d login attempts failed: %w", m.cfg.MaxLoginAttempts, lastErr),
		}
	}
	return m.authErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
