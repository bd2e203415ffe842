// Package publish binds "new portrait version created" to "feedback items
// closed" — the one cross-entity operation in the service.
//
// The version creation is authoritative: once it commits, other readers may
// already see it as current, so ledger cleanup failures never roll it back.
// Instead the result carries a per-id outcome list and explicit warnings.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"hirebot/portrait-service/internal/feedback"
	"hirebot/portrait-service/internal/portrait"
)

// Result is the composite publish outcome. Success with warnings is explicit:
// Portrait is the authoritative new version, Ledger reports what happened to
// each requested feedback id, and Warnings surfaces ledger-level failures.
type Result struct {
	Portrait *portrait.Record        `json:"portrait"`
	Ledger   []feedback.CloseOutcome `json:"ledger"`
	Warnings []string                `json:"warnings,omitempty"`
}

// Coordinator orchestrates the publish operation.
type Coordinator struct {
	portraits *portrait.Service
	ledger    feedback.Ledger
	rdb       *redis.Client
}

// New returns a configured Coordinator. rdb may be nil, in which case no
// event is published.
func New(portraits *portrait.Service, ledger feedback.Ledger, rdb *redis.Client) *Coordinator {
	return &Coordinator{portraits: portraits, ledger: ledger, rdb: rdb}
}

// Publish validates rawFields, creates the next portrait version for baseID
// and closes the given feedback ids. Validation and version-creation errors
// abort with no state changed; once the version exists the publish is a
// success regardless of ledger cleanup outcome.
func (c *Coordinator) Publish(ctx context.Context, baseID string, rawFields json.RawMessage, feedbackIDs []string) (*Result, error) {
	rec, err := c.portraits.Update(ctx, baseID, rawFields)
	if err != nil {
		return nil, err
	}

	res := &Result{Portrait: rec, Ledger: []feedback.CloseOutcome{}}
	if len(feedbackIDs) > 0 {
		outcomes, err := c.ledger.Close(ctx, feedbackIDs)
		if outcomes != nil {
			res.Ledger = outcomes
		}
		if err != nil {
			// Stale open feedback is recoverable; the published version is not
			// rolled back.
			slog.Warn("publish: ledger close failed", "baseId", baseID, "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("feedback ledger update failed: %v", err))
		}
	}

	c.publishEvent(ctx, baseID, rec.Version, res.Ledger)
	return res, nil
}

func (c *Coordinator) publishEvent(ctx context.Context, baseID string, version int, outcomes []feedback.CloseOutcome) {
	if c.rdb == nil {
		return
	}
	closed := 0
	for _, o := range outcomes {
		if o.Result == feedback.CloseClosed {
			closed++
		}
	}
	event, _ := json.Marshal(map[string]string{
		"type":           "EVENT_PORTRAIT_PUBLISHED",
		"baseId":         baseID,
		"version":        strconv.Itoa(version),
		"closedFeedback": strconv.Itoa(closed),
	})
	if err := c.rdb.Publish(ctx, "EVENT_PORTRAIT_PUBLISHED", event).Err(); err != nil {
		slog.Warn("publish EVENT_PORTRAIT_PUBLISHED failed", "err", err)
	}
}
