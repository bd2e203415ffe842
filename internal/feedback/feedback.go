// Package feedback is the append-only ledger of human corrections.
//
// Reviewers file an item when a candidate's scoring for a job looked wrong;
// items stay OPEN until the publish coordinator closes them together with the
// portrait version they motivated. Items are never reopened and never edited.
package feedback

import (
	"context"
	"encoding/json"
	"time"
)

// ─── Items ───────────────────────────────────────────────────────────────────

// State values mirror the feedback_state enum in PostgreSQL.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// Item is one human-submitted correction note tied to a candidate's scoring
// outcome for a job.
type Item struct {
	ID           string          `json:"id"`
	BaseID       string          `json:"baseId"`
	CandidateRef string          `json:"candidateRef"`
	Payload      json.RawMessage `json:"payload"`
	State        State           `json:"state"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ─── Close outcomes ──────────────────────────────────────────────────────────

// CloseResult is the per-id verdict of a Close call.
type CloseResult string

const (
	CloseClosed        CloseResult = "CLOSED"
	CloseAlreadyClosed CloseResult = "ALREADY_CLOSED"
	CloseNotFound      CloseResult = "NOT_FOUND"
)

// CloseOutcome reports what happened to one id during Close.
type CloseOutcome struct {
	ID     string      `json:"id"`
	Result CloseResult `json:"result"`
}

// BaseCount is the open-item total for one job, consumed by the digest
// scheduler.
type BaseCount struct {
	BaseID string `json:"baseId"`
	Open   int    `json:"openFeedback"`
}

// ─── Ledger ──────────────────────────────────────────────────────────────────

// Ledger is the feedback persistence capability. PGLedger is the production
// implementation; MemLedger backs tests and local development.
type Ledger interface {
	// Add records a new OPEN item and returns it.
	Add(ctx context.Context, baseID, candidateRef string, payload json.RawMessage) (*Item, error)

	// ListOpen returns the OPEN items for baseID in insertion order.
	ListOpen(ctx context.Context, baseID string) ([]Item, error)

	// CountOpen returns the number of OPEN items for baseID.
	CountOpen(ctx context.Context, baseID string) (int, error)

	// Close transitions each id OPEN→CLOSED, reporting a per-id outcome
	// instead of failing fast: already-closed ids are no-ops and unknown
	// ids are flagged NOT_FOUND, so a caller can proceed with whichever
	// ids exist.
	Close(ctx context.Context, ids []string) ([]CloseOutcome, error)

	// OpenCounts returns the open-item totals for every base id that has
	// at least one OPEN item.
	OpenCounts(ctx context.Context) ([]BaseCount, error)
}
