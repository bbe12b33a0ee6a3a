package app

import (
	"fmt"
	"strings"
	"time"

	"quoteshare/pkg/ai"
	"quoteshare/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	PageSize      int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	AITimeout     time.Duration

	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
	Now       func() time.Time
}

// App is the core application service wiring storage, sessions and the
// explanation generator together.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	generator ai.TextGenerator
	pageSize  int
	now       func() time.Time
	closers   []func() error
}

// New constructs the application. Missing collaborators are built from the
// connection settings; a nil generator with no API key leaves explanations
// disabled.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &App{pageSize: cfg.PageSize, now: cfg.Now}

	a.store = cfg.Store
	if a.store == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		a.store = gs
		a.closers = append(a.closers, gs.Close)
	}

	a.sessions = cfg.Sessions
	if a.sessions == nil {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			rs := store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
			a.sessions = rs
			a.closers = append(a.closers, rs.Close)
		} else {
			a.sessions = store.NewMemorySessionStore(cfg.SessionTTL)
		}
	}

	a.generator = cfg.Generator
	if a.generator == nil && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		a.generator = ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout)
	}
	return a, nil
}

// PageSize is the number of quotes per page.
func (a *App) PageSize() int { return a.pageSize }

// ExplanationsEnabled reports whether an explanation generator is configured.
func (a *App) ExplanationsEnabled() bool { return a.generator != nil }

// Close releases collaborators the App created itself.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
