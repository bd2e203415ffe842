package portrait

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the PostgreSQL Store implementation.
//
// Expected schema:
//
//	CREATE TABLE portraits (
//	  base_id    TEXT        NOT NULL,
//	  version    INT         NOT NULL,
//	  fields     JSONB       NOT NULL,
//	  is_current BOOLEAN     NOT NULL DEFAULT false,
//	  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	  PRIMARY KEY (base_id, version)
//	);
//	CREATE UNIQUE INDEX portraits_current_idx ON portraits (base_id) WHERE is_current;
//
// Every write runs inside a transaction holding a per-base-id advisory lock,
// so the demote/promote pair on is_current commits as one unit. The partial
// unique index is the backstop: a race that would leave two current versions
// fails the transaction instead, and the write is retried.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const (
	writeAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

const recordColumns = `base_id, version, fields, is_current, created_at`

func (s *PGStore) GetCurrent(ctx context.Context, baseID string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM portraits WHERE base_id = $1 AND is_current`,
		baseID,
	)
	return scanRecord(row)
}

func (s *PGStore) GetVersion(ctx context.Context, baseID string, version int) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM portraits WHERE base_id = $1 AND version = $2`,
		baseID, version,
	)
	return scanRecord(row)
}

func (s *PGStore) ListVersions(ctx context.Context, baseID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM portraits WHERE base_id = $1 ORDER BY version ASC`,
		baseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listVersions query: %w", err)
	}
	defer rows.Close()

	recs := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("listVersions scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (s *PGStore) Insert(ctx context.Context, baseID string, fields Fields) (*Record, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	var rec *Record
	err = s.withWriteRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if err := lockBase(ctx, tx, baseID); err != nil {
				return err
			}

			var next int
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(MAX(version), 0) + 1 FROM portraits WHERE base_id = $1`,
				baseID,
			).Scan(&next); err != nil {
				return fmt.Errorf("next version: %w", err)
			}

			if _, err := tx.Exec(ctx,
				`UPDATE portraits SET is_current = false WHERE base_id = $1 AND is_current`,
				baseID,
			); err != nil {
				return fmt.Errorf("demote current: %w", err)
			}

			var createdAt time.Time
			if err := tx.QueryRow(ctx,
				`INSERT INTO portraits (base_id, version, fields, is_current)
				 VALUES ($1, $2, $3::jsonb, true)
				 RETURNING created_at`,
				baseID, next, payload,
			).Scan(&createdAt); err != nil {
				return fmt.Errorf("insert version: %w", err)
			}

			rec = &Record{
				BaseID:      baseID,
				Version:     next,
				VersionedID: VersionedID(baseID, next),
				IsCurrent:   true,
				Fields:      fields,
				CreatedAt:   createdAt,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PGStore) SwitchCurrent(ctx context.Context, baseID string, version int) error {
	return s.withWriteRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if err := lockBase(ctx, tx, baseID); err != nil {
				return err
			}

			var isCurrent bool
			err := tx.QueryRow(ctx,
				`SELECT is_current FROM portraits WHERE base_id = $1 AND version = $2`,
				baseID, version,
			).Scan(&isCurrent)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("switchCurrent lookup: %w", err)
			}
			if isCurrent {
				return nil // already current — idempotent success
			}

			if _, err := tx.Exec(ctx,
				`UPDATE portraits SET is_current = false WHERE base_id = $1 AND is_current`,
				baseID,
			); err != nil {
				return fmt.Errorf("demote current: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`UPDATE portraits SET is_current = true WHERE base_id = $1 AND version = $2`,
				baseID, version,
			); err != nil {
				return fmt.Errorf("promote version: %w", err)
			}
			return nil
		})
	})
}

func (s *PGStore) Delete(ctx context.Context, baseID string, version int) error {
	return s.withWriteRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if err := lockBase(ctx, tx, baseID); err != nil {
				return err
			}

			var total int
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM portraits WHERE base_id = $1`,
				baseID,
			).Scan(&total); err != nil {
				return fmt.Errorf("count versions: %w", err)
			}

			var wasCurrent bool
			err := tx.QueryRow(ctx,
				`SELECT is_current FROM portraits WHERE base_id = $1 AND version = $2`,
				baseID, version,
			).Scan(&wasCurrent)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("delete lookup: %w", err)
			}
			if total == 1 {
				return ErrInvalidOperation
			}

			if _, err := tx.Exec(ctx,
				`DELETE FROM portraits WHERE base_id = $1 AND version = $2`,
				baseID, version,
			); err != nil {
				return fmt.Errorf("delete version: %w", err)
			}

			if wasCurrent {
				if _, err := tx.Exec(ctx,
					`UPDATE portraits SET is_current = true
					 WHERE base_id = $1
					   AND version = (SELECT MAX(version) FROM portraits WHERE base_id = $1)`,
					baseID,
				); err != nil {
					return fmt.Errorf("promote next highest: %w", err)
				}
			}
			return nil
		})
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// lockBase takes a transaction-scoped advisory lock keyed on the base id,
// serialising concurrent writers to the same portrait.
func lockBase(ctx context.Context, tx pgx.Tx, baseID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, baseID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// withWriteRetry re-runs op on write races (serialization failure, deadlock,
// unique violation on the current index) and on transient connection errors,
// up to writeAttempts. Domain errors pass through untouched.
func (s *PGStore) withWriteRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		switch {
		case isWriteConflict(err):
			if attempt == writeAttempts {
				return ErrConflict
			}
		case pgconn.SafeToRetry(err):
			if attempt == writeAttempts {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

// isWriteConflict reports whether err is a SQLSTATE that signals a lost race
// with a concurrent writer.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505": // serialization failure, deadlock, unique violation
		return true
	}
	return false
}

// scanRecord reads one portraits row, mapping pgx.ErrNoRows to ErrNotFound.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec Record
		raw []byte
	)
	err := row.Scan(&rec.BaseID, &rec.Version, &raw, &rec.IsCurrent, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	rec.VersionedID = VersionedID(rec.BaseID, rec.Version)
	return &rec, nil
}
