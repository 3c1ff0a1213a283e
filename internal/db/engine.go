// ABOUTME: Engine handles and the per-mode engine registry
// ABOUTME: Lazily opens cached SQLite pools using modernc.org/sqlite, one per execution mode

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNoDefaultRegistry is returned by the package-level accessors
// before InitDefault or SetDefaultRegistry has run.
var ErrNoDefaultRegistry = errors.New("default registry not initialized")

// MemoryPath is the path that selects an ephemeral in-memory database.
const MemoryPath = ":memory:"

// Mode selects which execution path an engine serves.
type Mode string

const (
	// ModeBlocking serves the multi-goroutine blocking path.
	ModeBlocking Mode = "blocking"
	// ModeLoop serves a single-goroutine cooperative path. Its pool is
	// capped at one connection so an event loop cannot fan out writers.
	ModeLoop Mode = "loop"
)

// Engine is a cached handle to the underlying file-backed store for
// one execution mode. Engines are safe for concurrent session
// creation; sessions themselves are not shareable.
type Engine struct {
	db     *sql.DB
	path   string
	mode   Mode
	logger *slog.Logger
}

// Open opens an engine on the given database path for the given mode.
// Parent directories are created if needed. WAL mode and foreign key
// enforcement are enabled; no schema work is performed here.
//
// An in-memory path gets a single-connection pool: every SQLite
// connection to ":memory:" is a distinct database, so a larger pool
// would scatter rows across invisible copies.
func Open(path string, mode Mode) (*Engine, error) {
	logger := slog.Default().With("component", "db", "mode", string(mode))

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == MemoryPath || mode == ModeLoop {
		db.SetMaxOpenConns(1)
	}

	// Force the pool to establish a connection now so an invalid or
	// inaccessible path fails at construction, not on first use.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	e := &Engine{
		db:     db,
		path:   path,
		mode:   mode,
		logger: logger,
	}

	logger.Debug("engine opened", "path", path)
	return e, nil
}

// dsn builds the connection string. Pragmas ride on the DSN so every
// pooled connection gets them, not just the one that ran an Exec.
func dsn(path string) string {
	params := "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == MemoryPath {
		return "file::memory:" + params
	}
	return "file:" + path + params + "&_pragma=journal_mode(WAL)"
}

// Path returns the database path the engine was opened on.
func (e *Engine) Path() string {
	return e.path
}

// Mode returns the execution mode the engine serves.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Close closes the underlying connection pool.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	return e.db.Close()
}

// Registry holds one engine slot per execution mode, lazily opened on
// first use and cached until explicitly replaced or reset. Both slots
// share the configured path but never share connection objects.
//
// The registry adds no write serialization across its engines: SQLite
// only reliably tolerates a single concurrent writer per file, and
// callers writing from both modes at once must impose their own
// single-writer discipline.
type Registry struct {
	mu       sync.Mutex
	path     string
	blocking *Engine
	loop     *Engine
}

// NewRegistry creates a registry whose engines will open the given
// database path. No connection is opened until an engine is requested.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Engine returns the cached blocking-mode engine, opening it on first
// call. Repeated calls return the identical handle until SetEngine or
// Reset replaces it.
func (r *Registry) Engine() (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blocking == nil {
		e, err := Open(r.path, ModeBlocking)
		if err != nil {
			return nil, err
		}
		r.blocking = e
	}
	return r.blocking, nil
}

// LoopEngine returns the cached loop-mode engine, opening it on first
// call. The slot is independent of the blocking one.
func (r *Registry) LoopEngine() (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loop == nil {
		e, err := Open(r.path, ModeLoop)
		if err != nil {
			return nil, err
		}
		r.loop = e
	}
	return r.loop, nil
}

// SetEngine replaces the blocking-mode slot. The previous engine, if
// any, is not closed; the caller that injected it owns its lifetime.
func (r *Registry) SetEngine(e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocking = e
}

// SetLoopEngine replaces the loop-mode slot.
func (r *Registry) SetLoopEngine(e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loop = e
}

// Reset closes and clears both slots. Test setups call this between
// cases; the next Engine or LoopEngine call reopens from the path.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.blocking != nil {
		if err := r.blocking.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.blocking = nil
	}
	if r.loop != nil {
		if err := r.loop.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.loop = nil
	}
	return firstErr
}

// Close releases both engine slots at shutdown. It is Reset under a
// name that reads right at the end of a process lifetime.
func (r *Registry) Close() error {
	return r.Reset()
}

// The process-wide default registry. Constructed at process start via
// InitDefault; test setups swap engines through the package-level
// setters and restore with SetDefaultRegistry(nil).
var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// InitDefault installs a default registry on the given database path
// and returns it. Any previous default is left to its owner; engines
// it holds are not closed here.
func InitDefault(path string) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry(path)
	return defaultRegistry
}

// SetDefaultRegistry replaces the process-wide default registry.
func SetDefaultRegistry(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
}

// DefaultRegistry returns the process-wide default registry, or nil
// before initialization.
func DefaultRegistry() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// GetEngine returns the default registry's cached blocking engine.
func GetEngine() (*Engine, error) {
	r := DefaultRegistry()
	if r == nil {
		return nil, ErrNoDefaultRegistry
	}
	return r.Engine()
}

// GetLoopEngine returns the default registry's cached loop engine.
func GetLoopEngine() (*Engine, error) {
	r := DefaultRegistry()
	if r == nil {
		return nil, ErrNoDefaultRegistry
	}
	return r.LoopEngine()
}

// SetEngine replaces the default registry's blocking slot.
func SetEngine(e *Engine) error {
	r := DefaultRegistry()
	if r == nil {
		return ErrNoDefaultRegistry
	}
	r.SetEngine(e)
	return nil
}

// SetLoopEngine replaces the default registry's loop slot.
func SetLoopEngine(e *Engine) error {
	r := DefaultRegistry()
	if r == nil {
		return ErrNoDefaultRegistry
	}
	r.SetLoopEngine(e)
	return nil
}
