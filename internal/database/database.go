// Package database handles SQL connections and queries.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard `database/sql`
// with convenient features like scanning rows into structs. Unlike an ORM,
// you write raw SQL, which gives you full control over every statement.
//
// The same SQL runs on PostgreSQL (lib/pq or pgx) and SQLite (modernc):
// queries are written with `?` placeholders and rebound for the driver,
// ids and timestamps are generated in Go, and nothing relies on RETURNING.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // registers the "postgres" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors callers match with errors.Is.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrConversionNotFound = errors.New("conversion not found")
	ErrConversionClosed   = errors.New("conversion already finished")
)

// Driver names as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx, so every query
// method works the same inside and outside a transaction.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Queries holds the SQL for every table. It is embedded in both DB and Tx.
type Queries struct {
	q querier
}

func (s *Queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.GetContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *Queries) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.SelectContext(ctx, dest, s.q.Rebind(query), args...)
}

// exec runs a statement and returns the number of affected rows.
func (s *Queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DB wraps the sqlx database connection with our application-specific methods.
// Go Pattern: Embedding (*sqlx.DB) gives us all of sqlx's methods automatically,
// plus we add our own through the embedded *Queries.
type DB struct {
	*sqlx.DB
	*Queries
}

// Tx is a transaction exposing the same query methods as DB.
type Tx struct {
	*sqlx.Tx
	*Queries
}

// New opens a database and configures its pool. driver may be empty, in
// which case it is inferred from the URL.
func New(databaseURL, driver string) (*DB, error) {
	driver, dsn, err := resolve(databaseURL, driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer. A single connection serialises
		// transactions instead of failing them with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(2 * time.Minute)
		db.SetConnMaxIdleTime(30 * time.Second)
	}

	return Wrap(db), nil
}

// Wrap adapts an existing sqlx handle.
func Wrap(db *sqlx.DB) *DB {
	return &DB{DB: db, Queries: &Queries{q: db}}
}

// resolve picks the driver and turns the URL into a driver DSN.
func resolve(databaseURL, driver string) (string, string, error) {
	if databaseURL == "" {
		return "", "", errors.New("DATABASE_URL is empty")
	}
	if driver == "" {
		switch {
		case strings.HasPrefix(databaseURL, "sqlite://"),
			strings.HasPrefix(databaseURL, "file:"),
			strings.HasSuffix(databaseURL, ".db"):
			driver = DriverSQLite
		case strings.HasPrefix(databaseURL, "postgres://"),
			strings.HasPrefix(databaseURL, "postgresql://"):
			driver = DriverPostgres
		default:
			return "", "", fmt.Errorf("cannot infer database driver from %q; set DATABASE_DRIVER", databaseURL)
		}
	}

	switch driver {
	case DriverPostgres, DriverPgx:
		return driver, databaseURL, nil
	case DriverSQLite:
		return driver, sqliteDSN(databaseURL), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func sqliteDSN(url string) string {
	path := strings.TrimPrefix(url, "sqlite://")
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return path
}

// HealthCheck verifies the database connection is alive.
// Go Pattern: context.Context is passed to functions that may be slow or
// need cancellation (like database queries and HTTP requests).
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// InTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on an error or a panic.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx, Queries: &Queries{q: sqlTx}}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure on
// any of the supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// now is the single source of timestamps written to the database.
func now() time.Time {
	return time.Now().UTC()
}
