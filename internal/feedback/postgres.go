package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger is the PostgreSQL Ledger implementation.
//
// Expected schema:
//
//	CREATE TYPE feedback_state AS ENUM ('OPEN', 'CLOSED');
//	CREATE TABLE feedback_items (
//	  id            UUID           PRIMARY KEY,
//	  base_id       TEXT           NOT NULL,
//	  candidate_ref TEXT           NOT NULL,
//	  payload       JSONB          NOT NULL,
//	  state         feedback_state NOT NULL DEFAULT 'OPEN',
//	  created_at    TIMESTAMPTZ    NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX feedback_items_open_idx ON feedback_items (base_id, state);
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger returns a Ledger backed by the given connection pool.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) Add(ctx context.Context, baseID, candidateRef string, payload json.RawMessage) (*Item, error) {
	item := &Item{
		ID:           uuid.NewString(),
		BaseID:       baseID,
		CandidateRef: candidateRef,
		Payload:      payload,
		State:        StateOpen,
	}

	var createdAt time.Time
	err := l.pool.QueryRow(ctx,
		`INSERT INTO feedback_items (id, base_id, candidate_ref, payload)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING created_at`,
		item.ID, baseID, candidateRef, payload,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("add feedback: %w", err)
	}

	item.CreatedAt = createdAt
	return item, nil
}

func (l *PGLedger) ListOpen(ctx context.Context, baseID string) ([]Item, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, base_id, candidate_ref, payload, state, created_at
		 FROM feedback_items
		 WHERE base_id = $1 AND state = 'OPEN'
		 ORDER BY created_at ASC, id ASC`,
		baseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listOpen query: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.BaseID, &it.CandidateRef, &it.Payload, &it.State, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("listOpen scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (l *PGLedger) CountOpen(ctx context.Context, baseID string) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM feedback_items WHERE base_id = $1 AND state = 'OPEN'`,
		baseID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countOpen: %w", err)
	}
	return n, nil
}

func (l *PGLedger) Close(ctx context.Context, ids []string) ([]CloseOutcome, error) {
	outcomes := make([]CloseOutcome, 0, len(ids))
	for _, id := range ids {
		outcome, err := l.closeOne(ctx, id)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, CloseOutcome{ID: id, Result: outcome})
	}
	return outcomes, nil
}

func (l *PGLedger) closeOne(ctx context.Context, id string) (CloseResult, error) {
	// Ids are UUIDs. A malformed id can never match a row, and binding it
	// against the uuid column would abort the batch instead of yielding a
	// per-id verdict.
	if uuid.Validate(id) != nil {
		return CloseNotFound, nil
	}

	tag, err := l.pool.Exec(ctx,
		`UPDATE feedback_items SET state = 'CLOSED' WHERE id = $1 AND state = 'OPEN'`,
		id,
	)
	if err != nil {
		return "", fmt.Errorf("close %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return CloseClosed, nil
	}

	// Nothing updated: either the item is already closed or it never existed.
	var one int
	err = l.pool.QueryRow(ctx, `SELECT 1 FROM feedback_items WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return CloseNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("close lookup %s: %w", id, err)
	}
	return CloseAlreadyClosed, nil
}

func (l *PGLedger) OpenCounts(ctx context.Context) ([]BaseCount, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT base_id, COUNT(*)
		 FROM feedback_items
		 WHERE state = 'OPEN'
		 GROUP BY base_id
		 ORDER BY base_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("openCounts query: %w", err)
	}
	defer rows.Close()

	counts := make([]BaseCount, 0)
	for rows.Next() {
		var c BaseCount
		if err := rows.Scan(&c.BaseID, &c.Open); err != nil {
			return nil, fmt.Errorf("openCounts scan: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
