package store

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

//go:embed schema.sql
var schemaSQL string

// DefaultPollInterval is how often database is checked for changes made by
// other sessions.
const DefaultPollInterval = 500 * time.Millisecond

// ErrClosed is returned by operations on closed database.
var ErrClosed = errors.New("store is closed")

// DBOption configures DB.
type DBOption func(*DB)

// WithLogger sets logger.
func WithLogger(log *zap.Logger) DBOption {
	return func(db *DB) {
		if log != nil {
			db.log = log
		}
	}
}

// WithPollInterval sets how often other sessions changes are looked for.
func WithPollInterval(d time.Duration) DBOption {
	return func(db *DB) {
		if d > 0 {
			db.interval = d
		}
	}
}

// DB is SQLite database holding slots.
type DB struct {
	log      *zap.Logger
	writer   string
	interval time.Duration

	// connection is not safe for concurrent use
	connMu sync.Mutex
	conn   *sqlite.Conn

	mu      sync.Mutex
	subs    map[string]map[uint64]func(string)
	nextSub uint64
	lastRev int64
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// Open opens (creating if necessary) database at path and starts watching it
// for changes made by other writers.
func Open(path string, opts ...DBOption) (*DB, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate writer id: %w", err)
	}

	db := &DB{
		log:      zap.NewNop(),
		writer:   id.String(),
		interval: DefaultPollInterval,
		subs:     make(map[string]map[uint64]func(string)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.log = db.log.Named("store")

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open database '%s': %w", path, err)
	}
	conn.SetBusyTimeout(5 * time.Second)

	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to apply schema: %w", err), conn.Close())
	}
	db.conn = conn

	if db.lastRev, err = db.maxRev(); err != nil {
		return nil, multierr.Append(err, conn.Close())
	}

	db.wg.Add(1)
	go db.poll()

	db.log.Debug("Database opened", zap.String("path", path), zap.String("writer", db.writer), zap.Int64("rev", db.lastRev))
	return db, nil
}

// WriterID returns identity this database handle writes with.
func (db *DB) WriterID() string {
	return db.writer
}

// Close stops poller and closes database.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.subs = make(map[string]map[uint64]func(string))
	db.mu.Unlock()

	close(db.done)
	db.wg.Wait()

	db.connMu.Lock()
	defer db.connMu.Unlock()
	conn := db.conn
	db.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("unable to close database: %w", err)
	}
	return nil
}

// Load returns raw value stored under key.
func (db *DB) Load(key string) (value string, found bool, err error) {
	err = db.exec(`SELECT value FROM slots WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value, found = stmt.ColumnText(0), true
				return nil
			},
		})
	if err != nil {
		return "", false, fmt.Errorf("unable to load '%s': %w", key, err)
	}
	return value, found, nil
}

// Save stores raw value under key. Subscribers of this handle are not
// notified, other handles will see the change on their next poll.
func (db *DB) Save(key, value string) error {
	var rev int64
	err := db.transaction(func(conn *sqlite.Conn) (err error) {
		if rev, err = nextRev(conn); err != nil {
			return err
		}
		return sqlitex.Execute(conn, `INSERT INTO slots(key, value, rev, writer, updated)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value, rev = excluded.rev, writer = excluded.writer, updated = excluded.updated`,
			&sqlitex.ExecOptions{
				Args: []any{key, value, rev, db.writer, time.Now().UnixMilli()},
			})
	})
	if err != nil {
		return fmt.Errorf("unable to save '%s': %w", key, err)
	}
	db.log.Debug("Slot saved", zap.String("key", key), zap.Int64("rev", rev), zap.Int("bytes", len(value)))
	return nil
}

// Delete removes key. Revision counter still advances, so writes following
// delete are seen by other handles.
func (db *DB) Delete(key string) error {
	err := db.transaction(func(conn *sqlite.Conn) error {
		if _, err := nextRev(conn); err != nil {
			return err
		}
		return sqlitex.Execute(conn, `DELETE FROM slots WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}})
	})
	if err != nil {
		return fmt.Errorf("unable to delete '%s': %w", key, err)
	}
	return nil
}

// Keys returns all stored keys in natural order.
func (db *DB) Keys() ([]string, error) {
	var keys []string
	err := db.exec(`SELECT key FROM slots`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = append(keys, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to list keys: %w", err)
	}
	sort.Sort(natural.StringSlice(keys))
	return keys, nil
}

// Watch calls fn with raw values written to key by other writers.
func (db *DB) Watch(key string, fn func(string)) (cancel func()) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return func() {}
	}
	id := db.nextSub
	db.nextSub++
	if db.subs[key] == nil {
		db.subs[key] = make(map[uint64]func(string))
	}
	db.subs[key][id] = fn

	return func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		if m, ok := db.subs[key]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(db.subs, key)
			}
		}
	}
}

type change struct {
	key, value string
	fns        []func(string)
}

func (db *DB) poll() {
	defer db.wg.Done()

	ticker := time.NewTicker(db.interval)
	defer ticker.Stop()

	for {
		select {
		case <-db.done:
			return
		case <-ticker.C:
			changes, err := db.changes()
			if err != nil {
				if !errors.Is(err, ErrClosed) {
					db.log.Warn("Unable to check for external changes", zap.Error(err))
				}
				continue
			}
			for _, c := range changes {
				db.log.Debug("External change detected", zap.String("key", c.key), zap.Int("subscribers", len(c.fns)))
				for _, fn := range c.fns {
					fn(c.value)
				}
			}
		}
	}
}

// changes returns values written by other writers since last call.
func (db *DB) changes() ([]change, error) {
	db.mu.Lock()
	since := db.lastRev
	db.mu.Unlock()

	type row struct {
		key, value, writer string
		rev                int64
	}
	var rows []row
	err := db.exec(`SELECT key, value, rev, writer FROM slots WHERE rev > ? ORDER BY rev`,
		&sqlitex.ExecOptions{
			Args: []any{since},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, row{
					key:    stmt.ColumnText(0),
					value:  stmt.ColumnText(1),
					rev:    stmt.ColumnInt64(2),
					writer: stmt.ColumnText(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var out []change
	for _, r := range rows {
		if r.rev > db.lastRev {
			db.lastRev = r.rev
		}
		if r.writer == db.writer {
			continue
		}
		subs := db.subs[r.key]
		if len(subs) == 0 {
			continue
		}
		c := change{key: r.key, value: r.value, fns: make([]func(string), 0, len(subs))}
		for _, fn := range subs {
			c.fns = append(c.fns, fn)
		}
		out = append(out, c)
	}
	return out, nil
}

func (db *DB) maxRev() (rev int64, err error) {
	err = db.exec(`SELECT rev FROM meta WHERE id = 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rev = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("unable to read revision: %w", err)
	}
	return rev, nil
}

// nextRev advances revision counter, must be called inside transaction.
func nextRev(conn *sqlite.Conn) (rev int64, err error) {
	err = sqlitex.Execute(conn, `UPDATE meta SET rev = rev + 1 WHERE id = 1 RETURNING rev`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rev = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err == nil && rev == 0 {
		err = errors.New("revision counter is missing")
	}
	return rev, err
}

func (db *DB) exec(query string, opts *sqlitex.ExecOptions) error {
	db.connMu.Lock()
	defer db.connMu.Unlock()
	if db.conn == nil {
		return ErrClosed
	}
	return sqlitex.Execute(db.conn, query, opts)
}

// transaction runs fn in immediate transaction, so revisions are committed
// in the order they are allocated.
func (db *DB) transaction(fn func(conn *sqlite.Conn) error) (err error) {
	db.connMu.Lock()
	defer db.connMu.Unlock()
	if db.conn == nil {
		return ErrClosed
	}
	end, err := sqlitex.ImmediateTransaction(db.conn)
	if err != nil {
		return err
	}
	defer end(&err)
	return fn(db.conn)
}
