package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"seess/analysis"
	"seess/playground"
	"seess/store"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
		Log:   zap.NewNop(),
	}
}

// OpenStore opens slot database from configuration, subsequent calls return
// already opened database.
func (e *LocalEnv) OpenStore() (*store.DB, error) {
	if e.DB != nil {
		return e.DB, nil
	}
	db, err := store.Open(e.Cfg.Storage.Path,
		store.WithLogger(e.Log),
		store.WithPollInterval(e.Cfg.Storage.PollInterval()))
	if err != nil {
		return nil, err
	}
	e.DB = db
	return db, nil
}

// Capability returns analyzer selected by name, empty name selects analyzer
// from configuration. Grammar analyzer is loaded in the background.
func (e *LocalEnv) Capability(ctx context.Context, name string) (*analysis.Capability, error) {
	if name == "" {
		name = e.Cfg.Playground.Analyzer
	}
	switch name {
	case "scanner":
		return analysis.Local(), nil
	case "grammar":
		cp := analysis.NewCapability(analysis.Grammar(e.Log), e.Log)
		cp.Start(ctx)
		return cp, nil
	default:
		return nil, fmt.Errorf("unknown analyzer '%s'", name)
	}
}

// NewSession opens playground session for configured project with buffers
// persisted in slot database.
func (e *LocalEnv) NewSession(ctx context.Context, opts playground.Options) (*playground.Session, error) {
	db, err := e.OpenStore()
	if err != nil {
		return nil, err
	}
	if opts.Capability == nil {
		if opts.Capability, err = e.Capability(ctx, ""); err != nil {
			return nil, err
		}
	}
	pg := e.Cfg.Playground
	opts.Debounce = pg.Debounce()
	opts.HistoryLimit = pg.HistoryLimit
	opts.Log = e.Log

	cssKey := store.SlotKey(pg.Project, string(playground.BufferCSS))
	htmlKey := store.SlotKey(pg.Project, string(playground.BufferHTML))
	e.Log.Debug("Opening session", zap.String("project", pg.Project), zap.String("css", cssKey), zap.String("html", htmlKey))

	return playground.New(
		store.NewSlot(db, cssKey, playground.DefaultCSS),
		store.NewSlot(db, htmlKey, playground.DefaultHTML),
		opts,
	), nil
}
