package feedback

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLedger is an in-memory Ledger used by tests and local development.
type MemLedger struct {
	mu    sync.Mutex
	order []*Item          // insertion order
	byID  map[string]*Item // id index
}

// NewMemLedger returns an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{byID: make(map[string]*Item)}
}

func (l *MemLedger) Add(_ context.Context, baseID, candidateRef string, payload json.RawMessage) (*Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := &Item{
		ID:           uuid.NewString(),
		BaseID:       baseID,
		CandidateRef: candidateRef,
		Payload:      payload,
		State:        StateOpen,
		CreatedAt:    time.Now().UTC(),
	}
	l.order = append(l.order, item)
	l.byID[item.ID] = item

	cp := *item
	return &cp, nil
}

func (l *MemLedger) ListOpen(_ context.Context, baseID string) ([]Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]Item, 0)
	for _, it := range l.order {
		if it.BaseID == baseID && it.State == StateOpen {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (l *MemLedger) CountOpen(_ context.Context, baseID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, it := range l.order {
		if it.BaseID == baseID && it.State == StateOpen {
			n++
		}
	}
	return n, nil
}

func (l *MemLedger) Close(_ context.Context, ids []string) ([]CloseOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	outcomes := make([]CloseOutcome, 0, len(ids))
	for _, id := range ids {
		it, ok := l.byID[id]
		switch {
		case !ok:
			outcomes = append(outcomes, CloseOutcome{ID: id, Result: CloseNotFound})
		case it.State == StateClosed:
			outcomes = append(outcomes, CloseOutcome{ID: id, Result: CloseAlreadyClosed})
		default:
			it.State = StateClosed
			outcomes = append(outcomes, CloseOutcome{ID: id, Result: CloseClosed})
		}
	}
	return outcomes, nil
}

func (l *MemLedger) OpenCounts(_ context.Context) ([]BaseCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	totals := make(map[string]int)
	var bases []string
	for _, it := range l.order {
		if it.State != StateOpen {
			continue
		}
		if _, seen := totals[it.BaseID]; !seen {
			bases = append(bases, it.BaseID)
		}
		totals[it.BaseID]++
	}

	counts := make([]BaseCount, 0, len(bases))
	for _, b := range bases {
		counts = append(counts, BaseCount{BaseID: b, Open: totals[b]})
	}
	return counts, nil
}
