package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"seess/css"
)

// Analyzer computes structural statistics of CSS text. Implementations may
// block, pipeline calls them off the caller goroutine unless they are local.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (css.Analysis, error)
	Version() string
}

// Loader initializes analyzer.
type Loader func(ctx context.Context) (Analyzer, error)

// State of analyzer capability.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned by Capability.Analyzer while loading is not finished.
var ErrNotReady = errors.New("analyzer is not ready")

// Capability holds analyzer which may take time to become available.
type Capability struct {
	load Loader
	log  *zap.Logger

	mu       sync.Mutex
	state    State
	analyzer Analyzer
	err      error
	settled  []func()
}

// NewCapability creates capability which will be loaded by Start.
func NewCapability(load Loader, log *zap.Logger) *Capability {
	if log == nil {
		log = zap.NewNop()
	}
	return &Capability{load: load, log: log.Named("analyzer")}
}

// Ready returns capability which is already initialized.
func Ready(an Analyzer) *Capability {
	return &Capability{log: zap.NewNop(), state: StateReady, analyzer: an}
}

// Local returns ready capability backed by structural scanner.
func Local() *Capability {
	return Ready(scanner{})
}

// Start begins loading in background. Only the first call has any effect.
func (c *Capability) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.state = StateLoading
	c.mu.Unlock()

	go func() {
		an, err := c.load(ctx)
		if err == nil && an == nil {
			err = errors.New("loader returned no analyzer")
		}

		c.mu.Lock()
		if err != nil {
			c.state, c.err = StateFailed, fmt.Errorf("unable to initialize analyzer: %w", err)
			c.log.Warn("Analyzer failed to load", zap.Error(err))
		} else {
			c.state, c.analyzer = StateReady, an
			c.log.Debug("Analyzer loaded", zap.String("version", an.Version()))
		}
		fns := c.settled
		c.settled = nil
		c.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}()
}

// State returns current state.
func (c *Capability) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Analyzer returns loaded analyzer, load error or ErrNotReady.
func (c *Capability) Analyzer() (Analyzer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		return c.analyzer, nil
	case StateFailed:
		return nil, c.err
	default:
		return nil, ErrNotReady
	}
}

// Wait starts capability if necessary and blocks until it is ready or failed.
func (c *Capability) Wait(ctx context.Context) (Analyzer, error) {
	c.Start(ctx)

	done := make(chan struct{})
	c.onSettled(func() { close(done) })
	select {
	case <-done:
		return c.Analyzer()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onSettled calls fn once capability is ready or failed, immediately if it
// already is.
func (c *Capability) onSettled(fn func()) {
	c.mu.Lock()
	if c.state == StateReady || c.state == StateFailed {
		c.mu.Unlock()
		fn()
		return
	}
	c.settled = append(c.settled, fn)
	c.mu.Unlock()
}

// scanner is the local structural scanner, cheap enough to run inline.
type scanner struct{}

func (scanner) Analyze(_ context.Context, text string) (css.Analysis, error) {
	return css.Scan(text), nil
}

func (scanner) Version() string {
	return "scanner"
}

func (scanner) inline() {}

type inliner interface {
	inline()
}

// grammar wraps tokenizer based parser.
type grammar struct {
	p *css.Parser
}

// Grammar returns loader of tokenizer based analyzer.
func Grammar(log *zap.Logger) Loader {
	return func(ctx context.Context) (Analyzer, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return grammar{p: css.NewParser(log)}, nil
	}
}

func (g grammar) Analyze(ctx context.Context, text string) (css.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return css.Analysis{}, err
	}
	return g.p.Analyze([]byte(text)), nil
}

func (g grammar) Version() string {
	return g.p.Version()
}
