package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/keys"
	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/querysql"
	"github.com/roach88/jsondb/internal/record"
)

// DriverName is the database/sql driver registered by this package: SQLite
// with per-connection pragmas and a REGEXP function.
const DriverName = "sqlite3_jsondb"

// Batch limits for inserts. A batch is flushed when the accumulated path
// and value bytes reach DefaultBatchBytes, or when it holds DefaultBatchRows
// rows (bounded by SQLite's host parameter limit).
const (
	DefaultBatchBytes = 512 * 1024
	DefaultBatchRows  = 200
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{ConnectHook: connectHook})
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func connectHook(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("regexp", regexpMatch, true); err != nil {
		return fmt.Errorf("register regexp: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

var patterns sync.Map // string -> *regexp.Regexp

// regexpMatch implements "text REGEXP pattern", which SQLite evaluates as
// regexp(pattern, text).
func regexpMatch(pattern, text string) (bool, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(text), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patterns.Store(pattern, re)
	return re.MatchString(text), nil
}

// DatabaseKind identifies the backing product.
type DatabaseKind int

const (
	SQLite DatabaseKind = iota
	PostgreSQL
	CockroachDB
)

func (k DatabaseKind) String() string {
	switch k {
	case SQLite:
		return "SQLite"
	case PostgreSQL:
		return "PostgreSQL"
	case CockroachDB:
		return "CockroachDB"
	default:
		return fmt.Sprintf("DatabaseKind(%d)", int(k))
	}
}

func (k DatabaseKind) dialect() querysql.Dialect {
	if k == SQLite {
		return querysql.SQLite
	}
	return querysql.Postgres
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Indexes    []record.Index
	Bus        events.Bus
	Keys       keys.Generator
	Logger     *slog.Logger
	BatchBytes int
	BatchRows  int
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Engine is the document store. It is safe for concurrent use, except for
// the Engine passed to a WithTransaction callback, which belongs to that
// callback's goroutine.
type Engine struct {
	db     *sql.DB
	ownsDB bool

	q  querier
	tx *sql.Tx // set inside WithTransaction

	kind     DatabaseKind
	regex    bool
	compiler *querysql.SQLCompiler

	indexes   record.IndexSet
	indexList []record.Index

	bus        events.Bus
	keys       keys.Generator
	logger     *slog.Logger
	batchBytes int
	batchRows  int

	// single is set when the pool allows one connection; an open Stream
	// then owns it and streams counts how many are open.
	single  bool
	streams *atomic.Int32
}

// ErrStreamOpen is the cause reported when an operation would wait on the
// only database connection while a Stream still holds it.
var ErrStreamOpen = errors.New("store: an open stream holds the only database connection")

// checkConn fails fast instead of deadlocking on a single-connection pool.
func (e *Engine) checkConn() error {
	if e.tx == nil && e.single && e.streams.Load() > 0 {
		return record.NewStorageError("connection busy", ErrStreamOpen)
	}
	return nil
}

// Open opens (creating if needed) the SQLite database at dsn through the
// sqlite3_jsondb driver and returns an Engine that owns it. Tables are not
// created; call CreateTables.
func Open(ctx context.Context, dsn string, opts Options) (*Engine, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, record.NewStorageError("failed to open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, record.NewStorageError("failed to connect to database", err)
	}
	if isMemoryDSN(dsn) {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	e, err := New(ctx, db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	e.ownsDB = true
	return e, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// New wraps an existing connection pool. The backing product is probed to
// select DDL, placeholder style and regex support. The caller keeps
// ownership of db.
func New(ctx context.Context, db *sql.DB, opts Options) (*Engine, error) {
	e := &Engine{
		db:         db,
		q:          db,
		bus:        opts.Bus,
		keys:       opts.Keys,
		logger:     opts.Logger,
		batchBytes: opts.BatchBytes,
		batchRows:  opts.BatchRows,
		single:     db.Stats().MaxOpenConnections == 1,
		streams:    new(atomic.Int32),
	}
	if e.bus == nil {
		e.bus = events.Nop{}
	}
	if e.keys == nil {
		e.keys = keys.Default
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.batchBytes <= 0 {
		e.batchBytes = DefaultBatchBytes
	}
	if e.batchRows <= 0 {
		e.batchRows = DefaultBatchRows
	}

	if err := e.setIndexes(opts.Indexes); err != nil {
		return nil, err
	}

	kind, err := probeKind(ctx, db)
	if err != nil {
		return nil, err
	}
	e.kind = kind
	e.compiler = querysql.NewSQLCompiler(kind.dialect())
	e.regex = probeRegex(ctx, db, kind)

	e.logger.Debug("detected database", "kind", kind, "regex", e.regex, "indexes", len(e.indexList))
	return e, nil
}

// setIndexes normalises index declarations to storage form so they match
// the keys the flattener derives from storage paths.
func (e *Engine) setIndexes(decls []record.Index) error {
	normalised := make([]record.Index, 0, len(decls))
	for _, idx := range decls {
		p, err := path.ToStoragePath(idx.Path)
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.Key(), err)
		}
		field, err := path.ValidateKey(idx.Field)
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.Key(), err)
		}
		normalised = append(normalised, record.Index{Path: p, Field: field})
	}
	e.indexList = normalised
	e.indexes = record.NewIndexSet(normalised...)
	return nil
}

func probeKind(ctx context.Context, db *sql.DB) (DatabaseKind, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err == nil {
		return SQLite, nil
	}
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return 0, record.NewStorageError("could not determine the database type", err)
	}
	switch {
	case strings.HasPrefix(version, "CockroachDB"):
		return CockroachDB, nil
	case strings.HasPrefix(version, "PostgreSQL"):
		return PostgreSQL, nil
	default:
		return 0, record.NewUnsupportedQueryError("unsupported database: " + version)
	}
}

func probeRegex(ctx context.Context, db *sql.DB, kind DatabaseKind) bool {
	if kind != SQLite {
		return true
	}
	var ok bool
	return db.QueryRowContext(ctx, "SELECT 'a' REGEXP 'a'").Scan(&ok) == nil && ok
}

// Close closes the database if the Engine opened it.
func (e *Engine) Close() error {
	if !e.ownsDB || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// DB returns the underlying pool.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Kind returns the detected backing product.
func (e *Engine) Kind() DatabaseKind {
	return e.kind
}

// SupportsRegex reports whether unindexed lookups can fall back to a scan.
func (e *Engine) SupportsRegex() bool {
	return e.regex
}

// Indexes returns the declared indexes with paths in storage form.
func (e *Engine) Indexes() []record.Index {
	return append([]record.Index(nil), e.indexList...)
}

// IndexPaths returns the canonical index keys, sorted.
func (e *Engine) IndexPaths() []string {
	return e.indexes.Keys()
}

// CreateKey returns a fresh unique key suitable as a path segment.
func (e *Engine) CreateKey() string {
	return e.keys.Generate()
}
