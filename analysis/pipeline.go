// Package analysis turns debounced CSS buffer into statistics.
//
// Pipeline publishes only the result for the most recently debounced input:
// completions for superseded input are dropped. Analyzer may be loaded
// asynchronously, until it is ready pipeline reports NotReady instead of
// blocking.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"seess/css"
	"seess/debounce"
)

// Kind of pipeline status.
type Kind int

const (
	KindNotReady Kind = iota // analyzer is not initialized yet
	KindPending              // analysis of the latest input is running
	KindError                // analyzer failed, Message has details
	KindResult               // Result is analysis of the latest input
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not-ready"
	case KindPending:
		return "pending"
	case KindError:
		return "error"
	case KindResult:
		return "result"
	default:
		return "unknown"
	}
}

// Status is what display layer shows. Seq identifies debounced input status
// belongs to and never decreases.
type Status struct {
	Kind    Kind
	Result  css.Analysis
	Message string
	Seq     uint64
}

func (s Status) String() string {
	switch s.Kind {
	case KindResult:
		return s.Result.String()
	case KindError:
		return "error: " + s.Message
	default:
		return s.Kind.String()
	}
}

// Option configures Pipeline.
type Option func(*Pipeline)

// WithLogger sets logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithListener registers callback invoked on every status change. Callback
// must not call Flush synchronously.
func WithListener(fn func(Status)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.listeners = append(p.listeners, fn)
		}
	}
}

// Pipeline debounces CSS text and analyzes it.
type Pipeline struct {
	cp        *Capability
	sched     *debounce.Scheduler[string]
	log       *zap.Logger
	listeners []func(Status)

	mu        sync.Mutex
	seq       uint64
	text      string
	submitted bool
	status    Status
	cancel    context.CancelFunc
	closed    bool

	pubMu     sync.Mutex
	published uint64

	wg sync.WaitGroup
}

// New creates pipeline running analyzer of cp after delay of quiescence.
func New(cp *Capability, delay time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		cp:  cp,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Named("analysis")
	p.sched = debounce.New(delay, p.run)

	if cp.State() == StateReady {
		p.status = Status{Kind: KindResult}
	} else {
		p.status = Status{Kind: KindNotReady}
	}
	cp.onSettled(p.settled)
	return p
}

// Submit schedules analysis of text.
func (p *Pipeline) Submit(text string) {
	p.sched.Schedule(text)
}

// Flush starts analysis of pending text immediately.
func (p *Pipeline) Flush() bool {
	return p.sched.Flush()
}

// Status returns current status.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Version returns analyzer version or empty string if analyzer is not ready.
func (p *Pipeline) Version() string {
	an, err := p.cp.Analyzer()
	if err != nil {
		return ""
	}
	return an.Version()
}

// Close cancels pending debounce and in-flight analysis and waits for
// background work to finish.
func (p *Pipeline) Close() {
	p.sched.Stop()

	p.mu.Lock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// run is called for every debounced input.
func (p *Pipeline) run(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	p.text, p.submitted = text, true
	if p.cancel != nil {
		// previous analysis is superseded
		p.cancel()
		p.cancel = nil
	}

	an, err := p.cp.Analyzer()
	var ctx context.Context
	switch {
	case errors.Is(err, ErrNotReady):
		p.status = Status{Kind: KindNotReady, Seq: seq}
	case err != nil:
		p.status = Status{Kind: KindError, Message: err.Error(), Seq: seq}
	default:
		p.status = Status{Kind: KindPending, Seq: seq}
		ctx, p.cancel = context.WithCancel(context.Background())
	}
	st := p.status
	p.mu.Unlock()

	p.publish(st)
	if an == nil {
		return
	}

	if _, ok := an.(inliner); ok {
		p.analyze(ctx, seq, an, text)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.analyze(ctx, seq, an, text)
	}()
}

func (p *Pipeline) analyze(ctx context.Context, seq uint64, an Analyzer, text string) {
	start := time.Now()
	res, err := an.Analyze(ctx, text)

	p.mu.Lock()
	if p.closed || seq != p.seq {
		p.mu.Unlock()
		p.log.Debug("Dropping superseded analysis", zap.Uint64("seq", seq))
		return
	}
	if err != nil {
		p.status = Status{Kind: KindError, Message: fmt.Sprintf("analysis failed: %v", err), Seq: seq}
	} else {
		p.status = Status{Kind: KindResult, Result: res, Seq: seq}
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	st := p.status
	p.mu.Unlock()

	p.log.Debug("Analysis finished", zap.Uint64("seq", seq), zap.Stringer("status", st), zap.Duration("elapsed", time.Since(start)))
	p.publish(st)
}

// settled is called once capability becomes ready or fails.
func (p *Pipeline) settled() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.submitted {
		text := p.text
		p.mu.Unlock()
		// analyzer just became available, redo the latest input
		p.run(text)
		return
	}
	if _, err := p.cp.Analyzer(); err != nil {
		p.status = Status{Kind: KindError, Message: err.Error(), Seq: p.seq}
	} else {
		p.status = Status{Kind: KindResult, Seq: p.seq}
	}
	st := p.status
	p.mu.Unlock()

	p.publish(st)
}

// publish delivers status to listeners, never going back in sequence.
func (p *Pipeline) publish(st Status) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	if st.Seq < p.published {
		return
	}
	p.published = st.Seq
	for _, fn := range p.listeners {
		fn(st)
	}
}
