// Package history implements bounded undo/redo store for a single value kept
// in sync with an externally persisted copy of the same value.
//
// Every transition carries an Origin. Self originated transitions are written
// to the bound Store, externally originated ones are never written back, and
// notifications repeating the value last synchronized with the store are
// dropped. This breaks feedback loops between engine and store without any
// hidden re-entrancy flags.
package history

import (
	"sync"

	"go.uber.org/zap"
)

// MaxDepth is the maximum number of undo steps kept.
const MaxDepth = 100

// Origin tells who caused a transition.
type Origin int

const (
	OriginSelf     Origin = iota // local SetValue, Undo, Redo or Reset
	OriginExternal               // value observed from the store
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Op is the operation which produced a transition.
type Op int

const (
	OpSet Op = iota
	OpUndo
	OpRedo
	OpReset
	OpExternal
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpUndo:
		return "undo"
	case OpRedo:
		return "redo"
	case OpReset:
		return "reset"
	case OpExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Change describes a single transition of present value.
type Change[T any] struct {
	Value  T
	Op     Op
	Origin Origin
}

// Store is an externally persisted value engine synchronizes with. Subscribe
// returns function which cancels subscription.
type Store[T any] interface {
	Get() T
	Set(v T)
	Subscribe(onChange func(T)) (cancel func())
}

// Option configures Engine.
type Option[T any] func(*Engine[T])

// WithStore binds engine to external store. Store value at construction time
// is considered synchronized.
func WithStore[T any](st Store[T]) Option[T] {
	return func(e *Engine[T]) {
		e.store = st
	}
}

// WithLimit sets maximum undo depth, values outside of 1..MaxDepth are
// replaced with MaxDepth.
func WithLimit[T any](n int) Option[T] {
	return func(e *Engine[T]) {
		if n < 1 || n > MaxDepth {
			n = MaxDepth
		}
		e.limit = n
	}
}

// WithListener registers callback invoked after every transition, both self
// and externally originated.
func WithListener[T any](fn func(Change[T])) Option[T] {
	return func(e *Engine[T]) {
		if fn != nil {
			e.listeners = append(e.listeners, fn)
		}
	}
}

// WithLogger sets logger, engine does not log values themselves.
func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(e *Engine[T]) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine keeps past, present and future of a value.
//
// Mutating methods are expected to be called by a single owner (display
// layer), store notifications may arrive from any goroutine. Callbacks
// (store writes and listeners) are called without internal lock held, so
// they are free to call back into engine.
type Engine[T any] struct {
	eq        func(a, b T) bool
	limit     int
	log       *zap.Logger
	store     Store[T]
	listeners []func(Change[T])
	cancel    func()

	mu      sync.Mutex
	past    []T // oldest..newest
	present T
	future  []T // nearest redo..furthest
	synced  T   // last value known to be in the store
	origin  Origin
	closed  bool
}

// New creates engine for comparable values.
func New[T comparable](initial T, opts ...Option[T]) *Engine[T] {
	return NewFunc(initial, func(a, b T) bool { return a == b }, opts...)
}

// NewFunc creates engine using eq to compare values.
func NewFunc[T any](initial T, eq func(a, b T) bool, opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{
		eq:      eq,
		limit:   MaxDepth,
		log:     zap.NewNop(),
		present: initial,
		origin:  OriginSelf,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("history")

	if e.store != nil {
		e.synced = e.store.Get()
		e.cancel = e.store.Subscribe(e.observe)
	}
	return e
}

// Close detaches engine from its store. Engine remains usable as a plain
// undo/redo stack.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.closed = true
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Value returns present value.
func (e *Engine[T]) Value() T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.present
}

// CanUndo reports whether Undo would change anything.
func (e *Engine[T]) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.past) > 0
}

// CanRedo reports whether Redo would change anything.
func (e *Engine[T]) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.future) > 0
}

// Depth returns number of available undo and redo steps.
func (e *Engine[T]) Depth() (past, future int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.past), len(e.future)
}

// LastOrigin returns origin of the most recent transition.
func (e *Engine[T]) LastOrigin() Origin {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.origin
}

// SetValue commits new value. Nothing happens if v equals present value.
func (e *Engine[T]) SetValue(v T) {
	e.mu.Lock()
	if e.eq(v, e.present) {
		e.mu.Unlock()
		return
	}
	e.pushPast(e.present)
	e.present = v
	e.future = nil
	ch := e.commitSelf(OpSet)
	e.mu.Unlock()

	e.emit(ch)
}

// Undo steps back in history. Nothing happens if there is no past.
func (e *Engine[T]) Undo() {
	e.mu.Lock()
	if len(e.past) == 0 {
		e.mu.Unlock()
		return
	}
	last := len(e.past) - 1
	prev := e.past[last]
	e.past = e.past[:last]
	e.future = append([]T{e.present}, e.future...)
	e.present = prev
	ch := e.commitSelf(OpUndo)
	e.mu.Unlock()

	e.emit(ch)
}

// Redo steps forward in history. Nothing happens if there is no future.
func (e *Engine[T]) Redo() {
	e.mu.Lock()
	if len(e.future) == 0 {
		e.mu.Unlock()
		return
	}
	next := e.future[0]
	e.future = e.future[1:]
	e.pushPast(e.present)
	e.present = next
	ch := e.commitSelf(OpRedo)
	e.mu.Unlock()

	e.emit(ch)
}

// Reset drops whole history and makes v present value.
func (e *Engine[T]) Reset(v T) {
	e.mu.Lock()
	e.past = nil
	e.future = nil
	e.present = v
	ch := e.commitSelf(OpReset)
	e.mu.Unlock()

	e.emit(ch)
}

// observe handles store notifications.
func (e *Engine[T]) observe(v T) {
	e.mu.Lock()
	if e.closed || e.eq(v, e.synced) {
		// echo of our own write or repeated notification
		e.mu.Unlock()
		return
	}
	dropped, discarded := len(e.past), len(e.future)
	e.past = nil
	e.future = nil
	e.present = v
	e.synced = v
	e.origin = OriginExternal
	ch := Change[T]{Value: v, Op: OpExternal, Origin: OriginExternal}
	e.mu.Unlock()

	e.log.Debug("External change accepted, local history discarded",
		zap.Int("undo", dropped), zap.Int("redo", discarded))
	e.emit(ch)
}

// pushPast must be called with lock held.
func (e *Engine[T]) pushPast(v T) {
	e.past = append(e.past, v)
	if over := len(e.past) - e.limit; over > 0 {
		// drop the oldest entries, do not keep evicted values reachable
		clear(e.past[:over])
		e.past = e.past[over:]
	}
}

// commitSelf must be called with lock held.
func (e *Engine[T]) commitSelf(op Op) Change[T] {
	e.origin = OriginSelf
	if e.store != nil && !e.closed {
		e.synced = e.present
	}
	return Change[T]{Value: e.present, Op: op, Origin: OriginSelf}
}

func (e *Engine[T]) emit(ch Change[T]) {
	if ch.Origin == OriginSelf && e.store != nil && !e.isClosed() {
		e.store.Set(ch.Value)
	}
	for _, fn := range e.listeners {
		fn(ch)
	}
}

func (e *Engine[T]) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
