// Package store persists playground buffers.
//
// A Slot is a single named value which can be read, written and observed.
// SQLite backed slots are shared between sessions (processes) using the same
// database file: every write bumps global revision and a poller delivers
// values written by other sessions to subscribers, much like browser storage
// events which never fire in the tab that made the change.
//
// Slots satisfy history.Store, so a history.Engine may be bound to them
// directly. Failures to persist or decode are logged and otherwise ignored,
// the engine keeps whatever value it accepted last.
package store
