package store

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Slot is a persisted value.
type Slot[T any] interface {
	Get() T
	Set(v T)
	Subscribe(onChange func(T)) (cancel func())
}

// SlotKey builds key for a buffer of a project. Project names are slugged so
// "My Page" and "my-page" share storage.
func SlotKey(project, buffer string) string {
	name := slug.Make(project)
	if name == "" {
		name = "default"
	}
	return name + "/" + strings.ToLower(buffer)
}

// DBSlot is a Slot kept in SQLite database, values are JSON encoded.
type DBSlot[T any] struct {
	db      *DB
	key     string
	initial T
	log     *zap.Logger
}

// NewSlot returns slot for key, initial is returned by Get when nothing is
// stored yet or stored value cannot be decoded.
func NewSlot[T any](db *DB, key string, initial T) *DBSlot[T] {
	return &DBSlot[T]{
		db:      db,
		key:     key,
		initial: initial,
		log:     db.log.With(zap.String("key", key)),
	}
}

// Key returns slot key.
func (s *DBSlot[T]) Key() string {
	return s.key
}

// Get returns stored value.
func (s *DBSlot[T]) Get() T {
	raw, found, err := s.db.Load(s.key)
	if err != nil {
		s.log.Warn("Unable to read slot, using initial value", zap.Error(err))
		return s.initial
	}
	if !found {
		return s.initial
	}
	v, err := decode[T](raw)
	if err != nil {
		s.log.Warn("Unable to decode slot, using initial value", zap.Error(err))
		return s.initial
	}
	return v
}

// Set stores value. Errors are logged, caller keeps its own copy of the value
// regardless.
func (s *DBSlot[T]) Set(v T) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("Unable to encode slot value", zap.Error(err))
		return
	}
	if err := s.db.Save(s.key, string(data)); err != nil {
		s.log.Warn("Unable to persist slot value", zap.Error(err))
	}
}

// Subscribe delivers values written by other sessions. Undecodable values are
// skipped.
func (s *DBSlot[T]) Subscribe(onChange func(T)) (cancel func()) {
	return s.db.Watch(s.key, func(raw string) {
		v, err := decode[T](raw)
		if err != nil {
			s.log.Debug("Ignoring undecodable external value", zap.Error(err))
			return
		}
		onChange(v)
	})
}

func decode[T any](raw string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(raw), &v)
	return v, err
}

// Memory is an in-process Slot. Every Set is delivered synchronously to all
// subscribers, including the one which made the change.
type Memory[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[uint64]func(T)
	next  uint64
}

// NewMemory creates in-process slot holding initial.
func NewMemory[T any](initial T) *Memory[T] {
	return &Memory[T]{value: initial, subs: make(map[uint64]func(T))}
}

func (m *Memory[T]) Get() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *Memory[T]) Set(v T) {
	m.mu.Lock()
	m.value = v
	subs := make([]func(T), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

func (m *Memory[T]) Subscribe(onChange func(T)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.subs[id] = onChange
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
