package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// silentRefreshTimeout bounds the headless login run during a refresh.
const silentRefreshTimeout = 90 * time.Second

// LoginRunner produces a fresh credential bundle. Headless mode must not
// prompt the user; it either reuses an existing browser session or fails.
type LoginRunner interface {
	Login(ctx context.Context, headless bool, timeout time.Duration) (*Bundle, error)
}

// RefreshError indicates the silent refresh collaborator failed and the
// cached bundle could not cover for it.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed: %v - run 'tmz auth login' to reauthenticate", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// ErrExpired indicates the cached bundle is past its literal expiry.
var ErrExpired = errors.New("credentials expired - run 'tmz auth login' to reauthenticate")

// Manager decides whether cached credentials are usable, triggers silent
// refreshes, and applies the stale-but-usable fallback policy.
type Manager struct {
	storage *Storage
	login   LoginRunner
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a credential lifecycle manager.
func NewManager(storage *Storage, login LoginRunner, logger *zap.Logger) *Manager {
	return &Manager{
		storage: storage,
		login:   login,
		logger:  logger,
		now:     time.Now,
	}
}

// GetValidOrRefresh returns a usable bundle, refreshing silently when the
// cached one is absent, expiring soon, or expired. If the refresh fails but
// the old bundle is still literally unexpired, it is returned anyway: a
// soon-to-expire token beats failing outright.
func (m *Manager) GetValidOrRefresh(ctx context.Context) (*Bundle, error) {
	bundle, err := m.storage.Load()
	if err != nil && !errors.Is(err, ErrNoBundle) {
		return nil, err
	}

	now := m.now()
	if bundle.StateAt(now) == Valid {
		return bundle, nil
	}

	fresh, refreshErr := m.login.Login(ctx, true, silentRefreshTimeout)
	if refreshErr == nil {
		if err := m.storage.Store(fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	if bundle != nil && bundle.ExpiresAt > now.Unix() {
		m.logger.Warn("silent refresh failed, falling back to soon-to-expire credentials",
			zap.Error(refreshErr),
			zap.Int64("expires_in_s", bundle.ExpiresAt-now.Unix()))
		return bundle, nil
	}

	return nil, &RefreshError{Err: refreshErr}
}

// GetCached returns the stored bundle without refreshing. It fails when the
// bundle is absent or literally expired; the refresh buffer is not applied,
// so this suits quick status checks rather than gating long-running work.
func (m *Manager) GetCached() (*Bundle, error) {
	bundle, err := m.storage.Load()
	if err != nil {
		return nil, err
	}
	if bundle.ExpiresAt <= m.now().Unix() {
		return nil, ErrExpired
	}
	return bundle, nil
}

// Current returns the lifecycle state and the stored bundle (nil if absent)
// without refreshing or applying usability checks.
func (m *Manager) Current() (State, *Bundle, error) {
	bundle, err := m.storage.Load()
	if errors.Is(err, ErrNoBundle) {
		return Absent, nil, nil
	}
	if err != nil {
		return Absent, nil, err
	}
	return bundle.StateAt(m.now()), bundle, nil
}

// Store builds a bundle from manually supplied tokens and persists it,
// fully replacing any previous bundle.
func (m *Manager) Store(skypeToken, chatToken, graphToken, presenceToken string) (*Bundle, error) {
	bundle, err := NewBundle(skypeToken, chatToken, graphToken, presenceToken)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Store(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// StoreBundle persists an already-built bundle (interactive login path).
func (m *Manager) StoreBundle(b *Bundle) error {
	return m.storage.Store(b)
}

// Clear removes the stored bundle. Idempotent.
func (m *Manager) Clear() error {
	return m.storage.Clear()
}
