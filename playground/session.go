// Package playground ties editing history, persistence, analysis and preview
// of the two playground buffers together.
package playground

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"seess/analysis"
	"seess/debounce"
	"seess/history"
	"seess/store"
)

// Buffer names editable document.
type Buffer string

const (
	BufferCSS  Buffer = "css"
	BufferHTML Buffer = "html"
)

// Buffers lists all session buffers.
var Buffers = []Buffer{BufferCSS, BufferHTML}

// ParseBuffer validates buffer name.
func ParseBuffer(name string) (Buffer, error) {
	switch b := Buffer(strings.ToLower(strings.TrimSpace(name))); b {
	case BufferCSS, BufferHTML:
		return b, nil
	default:
		return "", fmt.Errorf("unknown buffer '%s', expected css or html", name)
	}
}

// Both buffers may fill their histories.
const journalLimit = 2 * history.MaxDepth

// Options configures Session.
type Options struct {
	// Delay of quiescence before analysis and preview see a value.
	Debounce time.Duration
	// Undo depth of every buffer, see history.WithLimit.
	HistoryLimit int
	// Analyzer to use, structural scanner when nil.
	Capability *analysis.Capability
	Log        *zap.Logger

	OnStatus  func(analysis.Status)
	OnChange  func(Buffer, history.Change[string])
	OnPreview func(css, html string)
}

type buffer struct {
	engine  *history.Engine[string]
	preview *debounce.Scheduler[string]
}

// Session is a single playground: CSS and HTML buffers with independent
// histories, each synchronized with its own slot. Undo and Redo without
// buffer argument act on the most recently edited buffer.
type Session struct {
	log      *zap.Logger
	opts     Options
	pipeline *analysis.Pipeline
	bufs     map[Buffer]*buffer

	mu    sync.Mutex
	shown map[Buffer]string // debounced values
	undo  []Buffer          // buffers of self edits, newest last
	redo  []Buffer
}

// New creates session over persisted slots. Current slot values become
// initial buffer values, analysis of CSS starts immediately.
func New(cssSlot, htmlSlot store.Slot[string], opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	cp := opts.Capability
	if cp == nil {
		cp = analysis.Local()
	}

	s := &Session{
		log:   log.Named("session"),
		opts:  opts,
		bufs:  make(map[Buffer]*buffer, len(Buffers)),
		shown: make(map[Buffer]string, len(Buffers)),
	}
	s.pipeline = analysis.New(cp, opts.Debounce,
		analysis.WithLogger(s.log),
		analysis.WithListener(s.statusChanged))

	slots := map[Buffer]store.Slot[string]{BufferCSS: cssSlot, BufferHTML: htmlSlot}
	initial := make(map[Buffer]string, len(Buffers))
	for _, name := range Buffers {
		initial[name] = slots[name].Get()
		s.shown[name] = initial[name]
		s.bufs[name] = &buffer{
			preview: debounce.New(opts.Debounce, func(v string) { s.previewed(name, v) }),
		}
	}
	// store notifications may arrive as soon as engine subscribes
	for _, name := range Buffers {
		b := s.bufs[name]
		b.engine = history.New(initial[name],
			history.WithStore[string](slots[name]),
			history.WithLimit[string](opts.HistoryLimit),
			history.WithLogger[string](s.log.With(zap.String("buffer", string(name)))),
			history.WithListener(func(ch history.Change[string]) { s.changed(name, b, ch) }),
		)
	}

	s.pipeline.Submit(initial[BufferCSS])
	s.pipeline.Flush()
	return s
}

// Close detaches buffers from their slots and stops background work.
func (s *Session) Close() {
	for _, name := range Buffers {
		b := s.bufs[name]
		b.engine.Close()
		b.preview.Stop()
	}
	s.pipeline.Close()
}

// Value returns present value of buffer.
func (s *Session) Value(name Buffer) string {
	b, ok := s.bufs[name]
	if !ok {
		return ""
	}
	return b.engine.Value()
}

// SetValue commits edit of buffer. Returns false if nothing changed.
func (s *Session) SetValue(name Buffer, v string) bool {
	b, ok := s.bufs[name]
	if !ok || b.engine.Value() == v {
		return false
	}
	b.engine.SetValue(v)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = append(s.undo, name)
	if over := len(s.undo) - journalLimit; over > 0 {
		s.undo = s.undo[over:]
	}
	s.redo = nil
	return true
}

// Undo reverts the most recent edit regardless of buffer. Returns buffer
// which was changed.
func (s *Session) Undo() (Buffer, bool) {
	for {
		name, ok := s.pop(&s.undo)
		if !ok {
			return "", false
		}
		b := s.bufs[name]
		if !b.engine.CanUndo() {
			// evicted by history limit
			continue
		}
		b.engine.Undo()
		s.push(&s.redo, name)
		return name, true
	}
}

// Redo reapplies the most recently undone edit regardless of buffer.
func (s *Session) Redo() (Buffer, bool) {
	for {
		name, ok := s.pop(&s.redo)
		if !ok {
			return "", false
		}
		b := s.bufs[name]
		if !b.engine.CanRedo() {
			continue
		}
		b.engine.Redo()
		s.push(&s.undo, name)
		return name, true
	}
}

// UndoBuffer steps back in history of a single buffer.
func (s *Session) UndoBuffer(name Buffer) bool {
	b, ok := s.bufs[name]
	if !ok || !b.engine.CanUndo() {
		return false
	}
	b.engine.Undo()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = removeLast(s.undo, name)
	s.redo = append(s.redo, name)
	return true
}

// RedoBuffer steps forward in history of a single buffer.
func (s *Session) RedoBuffer(name Buffer) bool {
	b, ok := s.bufs[name]
	if !ok || !b.engine.CanRedo() {
		return false
	}
	b.engine.Redo()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.redo = removeLast(s.redo, name)
	s.undo = append(s.undo, name)
	return true
}

// Reset replaces buffer value dropping its history.
func (s *Session) Reset(name Buffer, v string) {
	b, ok := s.bufs[name]
	if !ok {
		return
	}
	b.engine.Reset(v)
	s.forget(name)
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool {
	return s.available(&s.undo, func(e *history.Engine[string]) bool { return e.CanUndo() })
}

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool {
	return s.available(&s.redo, func(e *history.Engine[string]) bool { return e.CanRedo() })
}

// CanUndoBuffer reports whether buffer has past.
func (s *Session) CanUndoBuffer(name Buffer) bool {
	b, ok := s.bufs[name]
	return ok && b.engine.CanUndo()
}

// CanRedoBuffer reports whether buffer has future.
func (s *Session) CanRedoBuffer(name Buffer) bool {
	b, ok := s.bufs[name]
	return ok && b.engine.CanRedo()
}

// Status returns analysis status of debounced CSS.
func (s *Session) Status() analysis.Status {
	return s.pipeline.Status()
}

// AnalyzerVersion returns version of analyzer or empty string if it is not
// ready.
func (s *Session) AnalyzerVersion() string {
	return s.pipeline.Version()
}

// Flush makes analysis and preview see current values without waiting for
// debounce delay.
func (s *Session) Flush() {
	s.pipeline.Flush()
	for _, name := range Buffers {
		s.bufs[name].preview.Flush()
	}
}

// Debounced returns value of buffer as preview currently shows it.
func (s *Session) Debounced(name Buffer) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown[name]
}

// Preview composes preview document from debounced buffers.
func (s *Session) Preview(theme Theme) (string, error) {
	s.mu.Lock()
	css, html := s.shown[BufferCSS], s.shown[BufferHTML]
	s.mu.Unlock()
	return ComposePreview(css, html, theme)
}

// BufferState is what display layer needs to know about a buffer.
type BufferState struct {
	Value   string
	CanUndo bool
	CanRedo bool
	Origin  history.Origin
}

// Snapshot is state of the whole session.
type Snapshot struct {
	CSS     BufferState
	HTML    BufferState
	CanUndo bool
	CanRedo bool
	Status  analysis.Status
}

// Snapshot returns current session state.
func (s *Session) Snapshot() Snapshot {
	state := func(name Buffer) BufferState {
		e := s.bufs[name].engine
		return BufferState{Value: e.Value(), CanUndo: e.CanUndo(), CanRedo: e.CanRedo(), Origin: e.LastOrigin()}
	}
	return Snapshot{
		CSS:     state(BufferCSS),
		HTML:    state(BufferHTML),
		CanUndo: s.CanUndo(),
		CanRedo: s.CanRedo(),
		Status:  s.Status(),
	}
}

// changed is engine listener, called for self and external transitions.
func (s *Session) changed(name Buffer, b *buffer, ch history.Change[string]) {
	if ch.Origin == history.OriginExternal {
		s.forget(name)
		s.log.Info("Buffer replaced by another session", zap.String("buffer", string(name)), zap.Int("bytes", len(ch.Value)))
	}
	if name == BufferCSS {
		s.pipeline.Submit(ch.Value)
	}
	b.preview.Schedule(ch.Value)
	if s.opts.OnChange != nil {
		s.opts.OnChange(name, ch)
	}
}

func (s *Session) previewed(name Buffer, v string) {
	s.mu.Lock()
	s.shown[name] = v
	css, html := s.shown[BufferCSS], s.shown[BufferHTML]
	s.mu.Unlock()

	if s.opts.OnPreview != nil {
		s.opts.OnPreview(css, html)
	}
}

func (s *Session) statusChanged(st analysis.Status) {
	s.log.Debug("Analysis status", zap.Stringer("status", st), zap.Uint64("seq", st.Seq))
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(st)
	}
}

// forget removes buffer from journals once its history is gone.
func (s *Session) forget(name Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	del := func(b Buffer) bool { return b == name }
	s.undo = slices.DeleteFunc(s.undo, del)
	s.redo = slices.DeleteFunc(s.redo, del)
}

func (s *Session) pop(journal *[]Buffer) (Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := *journal
	if len(j) == 0 {
		return "", false
	}
	name := j[len(j)-1]
	*journal = j[:len(j)-1]
	return name, true
}

func (s *Session) push(journal *[]Buffer, name Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*journal = append(*journal, name)
}

func (s *Session) available(journal *[]Buffer, can func(*history.Engine[string]) bool) bool {
	s.mu.Lock()
	names := slices.Clone(*journal)
	s.mu.Unlock()

	for _, name := range slices.Backward(names) {
		if can(s.bufs[name].engine) {
			return true
		}
	}
	return false
}

func removeLast(journal []Buffer, name Buffer) []Buffer {
	for i := len(journal) - 1; i >= 0; i-- {
		if journal[i] == name {
			return slices.Delete(journal, i, i+1)
		}
	}
	return journal
}
