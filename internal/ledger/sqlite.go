package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"entrypass/internal/pass"
)

var _ Store = &SQLiteStore{}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS passes (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		phone         TEXT NOT NULL,
		school        TEXT NOT NULL,
		issued_at     DATETIME NOT NULL,
		checked_in    BOOLEAN NOT NULL DEFAULT 0,
		check_in_time DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_passes_email ON passes(email);
	CREATE INDEX IF NOT EXISTS idx_passes_issued ON passes(issued_at);

	CREATE TABLE IF NOT EXISTS processed_emails (
		email        TEXT PRIMARY KEY,
		processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteStore persists the ledger in a local SQLite file, for single-host
// deployments that must survive a restart without running a database server.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec pass.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passes (`+passColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.School, rec.Timestamp.UTC(), rec.CheckedIn, utcPtr(rec.CheckInTime))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return NewPassAlreadyExistsError(rec.ID)
		}
		return NewFailedToWriteError(fmt.Sprintf("Failed to insert pass %q", rec.ID), err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (pass.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pass.Record{}, NewPassNotFoundError(id)
		}
		return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Failed to read pass %q", id), err)
	}
	return rec, nil
}

func (s *SQLiteStore) CheckIn(ctx context.Context, id string, at time.Time) (pass.Record, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE passes
		SET checked_in = 1, check_in_time = ?
		WHERE id = ? AND checked_in = 0
	`, at.UTC(), id)
	if err != nil {
		return pass.Record{}, NewFailedToWriteError(fmt.Sprintf("Failed to check in pass %q", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pass.Record{}, NewFailedToWriteError(fmt.Sprintf("Failed to check in pass %q", id), err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return pass.Record{}, err
	}
	if n == 0 {
		return rec, NewAlreadyCheckedInError(id)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]pass.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+passColumns+` FROM passes ORDER BY issued_at, rowid`)
	if err != nil {
		return nil, NewFailedToFetchError("Failed to list passes", err)
	}
	defer rows.Close()

	var res []pass.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, NewFailedToFetchError("Failed to scan pass", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewFailedToFetchError("Failed to list passes", err)
	}
	return res, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO processed_emails (email) VALUES (?)`, email)
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to mark %q processed", email), err)
	}
	return nil
}

func (s *SQLiteStore) IsProcessed(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_emails WHERE email = ?`, email).Scan(&n)
	if err != nil {
		return false, NewFailedToFetchError(fmt.Sprintf("Failed to look up %q", email), err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ProcessedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_emails`).Scan(&n); err != nil {
		return 0, NewFailedToFetchError("Failed to count processed emails", err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
