package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts "sqlite", "sqlite3", "postgres" or "postgresql".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database type %q", s)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides data access methods
type Repository struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect Dialect
}

// New opens an SQLite database at dbPath. ":memory:" gives a throwaway
// database, which is what tests use.
func New(dbPath string) (*Repository, error) {
	return Open(DialectSQLite, dbPath)
}

// Open connects to the database described by dialect and dsn and runs the
// migrations.
func Open(dialect Dialect, dsn string) (*Repository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		// Enable foreign key constraints
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, err
		}
		// A single connection serialises writers and keeps :memory: databases
		// alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case DialectPostgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	repo := &Repository{db: db, dialect: dialect}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Dialect returns the SQL flavour in use.
func (r *Repository) Dialect() Dialect {
	if r.dialect == "" {
		return DialectSQLite
	}
	return r.dialect
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil && r.tx == nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn inside a database transaction. The repository handed to fn
// must be used for every query of the unit of work; fn returning an error
// rolls everything back. Nested calls reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx FullRepository) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Repository{db: r.db, tx: tx, dialect: r.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (r *Repository) conn() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.conn().ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.conn().QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.conn().QueryRowContext(ctx, r.rebind(query), args...)
}

// rebind rewrites ? placeholders to $N for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.Dialect() != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isForeignKeyViolation reports whether err is a foreign key failure.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
