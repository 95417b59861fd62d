package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"entrypass/internal/pass"
)

var _ Store = &PostgresStore{}

const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS passes (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		phone         TEXT NOT NULL,
		school        TEXT NOT NULL,
		issued_at     TIMESTAMPTZ NOT NULL,
		checked_in    BOOLEAN NOT NULL DEFAULT FALSE,
		check_in_time TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_passes_email ON passes(email);

	CREATE TABLE IF NOT EXISTS processed_emails (
		email        TEXT PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

const passColumns = `id, name, email, phone, school, issued_at, checked_in, check_in_time`

// PostgresStore persists the ledger in Postgres through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and its tables.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec pass.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passes (`+passColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.School, rec.Timestamp, rec.CheckedIn, rec.CheckInTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return NewPassAlreadyExistsError(rec.ID)
		}
		return NewFailedToWriteError(fmt.Sprintf("Failed to insert pass %q", rec.ID), err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (pass.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pass.Record{}, NewPassNotFoundError(id)
		}
		return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Failed to read pass %q", id), err)
	}
	return rec, nil
}

func (s *PostgresStore) CheckIn(ctx context.Context, id string, at time.Time) (pass.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE passes
		SET checked_in = TRUE, check_in_time = $2
		WHERE id = $1 AND NOT checked_in
		RETURNING `+passColumns, id, at)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return pass.Record{}, NewFailedToWriteError(fmt.Sprintf("Failed to check in pass %q", id), err)
	}

	// Nothing updated: either the pass is unknown or someone checked it in first.
	existing, err := s.Get(ctx, id)
	if err != nil {
		return pass.Record{}, err
	}
	return existing, NewAlreadyCheckedInError(id)
}

func (s *PostgresStore) List(ctx context.Context) ([]pass.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+passColumns+` FROM passes ORDER BY issued_at, id`)
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

func (s *PostgresStore) MarkProcessed(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_emails (email)
		VALUES ($1)
		ON CONFLICT (email) DO NOTHING
	`, email)
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to mark %q processed", email), err)
	}
	return nil
}

func (s *PostgresStore) IsProcessed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM processed_emails WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, NewFailedToFetchError(fmt.Sprintf("Failed to look up %q", email), err)
	}
	return exists, nil
}

func (s *PostgresStore) ProcessedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_emails`).Scan(&n); err != nil {
		return 0, NewFailedToFetchError("Failed to count processed emails", err)
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (pass.Record, error) {
	var rec pass.Record
	var checkInTime sql.NullTime
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.School, &rec.Timestamp, &rec.CheckedIn, &checkInTime)
	if err != nil {
		return pass.Record{}, err
	}
	if checkInTime.Valid {
		t := checkInTime.Time
		rec.CheckInTime = &t
	}
	return rec, nil
}
