package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/justchokingaround/shikiplay/internal/database"
	"github.com/justchokingaround/shikiplay/internal/notice"
)

// Authorizer obtains a fresh credential. prev is the stored credential, if
// any, so implementations can refresh instead of prompting.
type Authorizer interface {
	Authorize(ctx context.Context, prev *Credential) (*Credential, error)
}

// AuthorizerFunc adapts a function to Authorizer
type AuthorizerFunc func(ctx context.Context, prev *Credential) (*Credential, error)

// Authorize implements Authorizer
func (f AuthorizerFunc) Authorize(ctx context.Context, prev *Credential) (*Credential, error) {
	return f(ctx, prev)
}

// Manager owns the persisted credential
type Manager struct {
	store      database.Store
	authorizer Authorizer
	reporter   *notice.Reporter
	logger     *slog.Logger
	now        func() time.Time

	// mu is held across authorization so concurrent callers refresh once
	mu sync.Mutex
}

// ManagerConfig configures a Manager
type ManagerConfig struct {
	Store      database.Store
	Authorizer Authorizer
	Reporter   *notice.Reporter
	Logger     *slog.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// NewManager creates a credential manager
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:      cfg.Store,
		authorizer: cfg.Authorizer,
		reporter:   cfg.Reporter,
		logger:     cfg.Logger.With("component", "auth"),
		now:        cfg.Now,
	}
}

// GetValidCredential returns a credential valid right now, or nil.
//
// Without a stored credential it returns nil unless forceInteractive is set,
// so background callers never trigger a prompt. An expired credential is
// renewed once and persisted. Authorization failures are reported as
// notices and yield a nil credential; only store failures are returned.
func (m *Manager) GetValidCredential(ctx context.Context, forceInteractive bool) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	if current == nil || current.AccessToken == "" {
		if !forceInteractive {
			return nil, nil
		}
		return m.renew(ctx, nil)
	}

	if !current.Valid(m.now()) {
		m.logger.Debug("credential expired", "expired_at", current.ExpiresAt())
		return m.renew(ctx, current)
	}
	return current, nil
}

// Status returns the stored credential, if any, and whether it is valid now
func (m *Manager) Status(ctx context.Context) (*Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.load(ctx)
	if err != nil {
		return nil, false, err
	}
	return current, current.Valid(m.now()), nil
}

// Logout forgets the stored credential
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, CredentialKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

func (m *Manager) load(ctx context.Context) (*Credential, error) {
	var c Credential
	ok, err := m.store.Get(ctx, CredentialKey, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Manager) renew(ctx context.Context, prev *Credential) (*Credential, error) {
	fresh, err := m.authorizer.Authorize(ctx, prev)
	if err != nil {
		m.report(ctx, err)
		return nil, nil
	}

	if err := m.store.Set(ctx, CredentialKey, fresh); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}
	m.logger.Info("credential renewed", "expires_at", fresh.ExpiresAt())
	return fresh, nil
}

func (m *Manager) report(ctx context.Context, err error) {
	if m.reporter == nil {
		m.logger.Error("authorization failed", "error", err)
		return
	}
	m.reporter.Handle(ctx, err, notice.ActionAuthorize)
}
