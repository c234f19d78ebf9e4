package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// DB is the persistent store. Every method runs as its own statement or, for
// cascading deletes, its own short transaction.
type DB struct {
	*sql.DB
	dialect dialect
}

// Init opens the database and creates any missing tables.
func Init(driver, dsn string) (*DB, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects without touching the schema.
func Open(driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.singleWriter {
		// SQLite allows one writer; a single connection avoids "database is locked".
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, dialect: d}, nil
}

type dialect struct {
	name         string
	idColumn     string
	realType     string
	timeType     string
	dollarParams bool
	singleWriter bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3":
		return dialect{
			name:         driver,
			idColumn:     "INTEGER PRIMARY KEY AUTOINCREMENT",
			realType:     "REAL",
			timeType:     "TIMESTAMP",
			singleWriter: true,
		}, nil
	case "postgres":
		return dialect{
			name:         driver,
			idColumn:     "BIGSERIAL PRIMARY KEY",
			realType:     "DOUBLE PRECISION",
			timeType:     "TIMESTAMPTZ",
			dollarParams: true,
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebind rewrites "?" placeholders for drivers that use "$n".
func (d dialect) rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) tableQueries() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			phone TEXT,
			show_notifications BOOLEAN NOT NULL DEFAULT TRUE,
			created_at %s NOT NULL
		)`, d.idColumn, d.timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS predictions (
			id %s,
			user_id BIGINT NOT NULL,
			image_path TEXT NOT NULL,
			prediction_label TEXT NOT NULL,
			confidence %s NOT NULL,
			timestamp %s NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`, d.idColumn, d.realType, d.timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS reviews (
			id %s,
			user_id BIGINT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			body TEXT NOT NULL DEFAULT '',
			timestamp %s NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`, d.idColumn, d.timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS notifications (
			id %s,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			expiry_date %s,
			created_at %s NOT NULL
		)`, d.idColumn, d.timeType, d.timeType),
		`CREATE INDEX IF NOT EXISTS idx_predictions_user_time ON predictions(user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_time ON reviews(timestamp)`,
	}
}

// Migrate creates missing tables and indexes and seeds the welcome notification.
func (db *DB) Migrate(ctx context.Context) error {
	for _, query := range db.dialect.tableQueries() {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications").Scan(&count); err != nil {
		return fmt.Errorf("counting notifications: %w", err)
	}
	if count == 0 {
		if _, err := db.exec(ctx,
			"INSERT INTO notifications (title, body, active, created_at) VALUES (?, ?, ?, ?)",
			"Welcome!", "Thank you for using Agrodoc!", true, now()); err != nil {
			return fmt.Errorf("seeding notifications: %w", err)
		}
	}
	return nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.dialect.name
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (db *DB) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := db.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// now is the row timestamp; stored in UTC so text comparisons in SQLite order correctly.
func now() time.Time {
	return time.Now().UTC()
}
