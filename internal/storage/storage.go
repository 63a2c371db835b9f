package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pfrederiksen/odmp-harvest/internal/record"

	_ "modernc.org/sqlite"
)

const (
	// Extension is required on every output path
	Extension = ".db"
	// DefaultFilename is used in the working directory when no path is given
	DefaultFilename = "odmp.db"

	lockSuffix = ".lock"
)

var (
	ErrInvalidExtension = errors.New("output path does not reference a SQLite file (expected " + Extension + ")")
	ErrNotWritable      = errors.New("output path is not writable")
	ErrLocked           = errors.New("output database is in use by another run")
)

const schema = `
CREATE TABLE IF NOT EXISTS officers (
  url text,
  name text,
  state text,
  eow text,
  cause text
);`

// Store is an open output database
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	insert *sql.Stmt
}

// DefaultPath returns DefaultFilename inside the working directory
func DefaultPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(wd, DefaultFilename), nil
}

// ValidatePath checks that path names a .db file that can be written, either
// because it exists and is writable or because its directory accepts new files.
func ValidatePath(path string) error {
	if !strings.HasSuffix(path, Extension) {
		return fmt.Errorf("%w: %s", ErrInvalidExtension, path)
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrNotWritable, path)
		}
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotWritable, err)
		}
		return f.Close()
	case errors.Is(err, os.ErrNotExist):
		probe, err := os.CreateTemp(filepath.Dir(path), ".odmp-harvest-*")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotWritable, err)
		}
		probe.Close()
		return os.Remove(probe.Name())
	default:
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
}

// Open validates path, takes the run lock, and opens the database with the
// officers table in place.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	s, err := open(ctx, path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

func open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// one writer; inserts are strictly sequential anyway
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	insert, err := db.PrepareContext(ctx, `
INSERT INTO officers (url, name, state, eow, cause)
VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}

	return &Store{db: db, path: path, insert: insert}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Reset recreates the schema if needed and discards every stored row
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM officers;`); err != nil {
		return fmt.Errorf("clearing officers: %w", err)
	}
	return nil
}

// Insert writes one record. Each insert stands alone; there is no enclosing
// transaction.
func (s *Store) Insert(ctx context.Context, rec record.Record) error {
	_, err := s.insert.ExecContext(ctx,
		rec.URL,
		rec.Name,
		nullable(rec.State),
		nullable(rec.EOW),
		nullable(rec.Cause),
	)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", rec.URL, err)
	}
	return nil
}

// Records returns every stored row in insertion order
func (s *Store) Records(ctx context.Context) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT url, name, state, eow, cause
FROM officers
ORDER BY rowid;`)
	if err != nil {
		return nil, fmt.Errorf("querying officers: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var (
			url, name         sql.NullString
			state, eow, cause sql.NullString
		)
		if err := rows.Scan(&url, &name, &state, &eow, &cause); err != nil {
			return nil, fmt.Errorf("scanning officer: %w", err)
		}
		out = append(out, record.Record{
			URL:   url.String,
			Name:  name.String,
			State: fromNull(state),
			EOW:   fromNull(eow),
			Cause: fromNull(cause),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored rows
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM officers;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting officers: %w", err)
	}
	return n, nil
}

// Close releases the database and the run lock
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	var errs []error
	if s.insert != nil {
		errs = append(errs, s.insert.Close())
	}
	errs = append(errs, s.db.Close())
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
		_ = os.Remove(s.lock.Path())
	}
	s.db = nil
	return errors.Join(errs...)
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return record.String(ns.String)
}
