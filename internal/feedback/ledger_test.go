package feedback_test

import (
	"context"
	"encoding/json"
	"testing"

	"hirebot/portrait-service/internal/feedback"
)

func addItem(t *testing.T, l feedback.Ledger, baseID, candidateRef string) *feedback.Item {
	t.Helper()
	payload := json.RawMessage(`{"issue": "scored too low", "suggestion": "weigh infra experience"}`)
	item, err := l.Add(context.Background(), baseID, candidateRef, payload)
	if err != nil {
		t.Fatalf("Add unexpected error: %v", err)
	}
	return item
}

// ── Add / ListOpen / CountOpen ──────────────────────────────────────────────

func TestAdd_StartsOpen(t *testing.T) {
	l := feedback.NewMemLedger()
	item := addItem(t, l, "architecture", "cand-42")

	if item.State != feedback.StateOpen {
		t.Errorf("State = %s, want OPEN", item.State)
	}
	if item.ID == "" {
		t.Error("Add must assign an id")
	}
	if item.CreatedAt.IsZero() {
		t.Error("Add must stamp createdAt")
	}
}

func TestListOpen_InsertionOrderAndScoping(t *testing.T) {
	l := feedback.NewMemLedger()
	first := addItem(t, l, "architecture", "cand-1")
	second := addItem(t, l, "architecture", "cand-2")
	addItem(t, l, "frontend", "cand-3") // other job, must not appear

	items, err := l.ListOpen(context.Background(), "architecture")
	if err != nil {
		t.Fatalf("ListOpen unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListOpen returned %d items, want 2", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Error("ListOpen must preserve insertion order")
	}
}

func TestCountOpen_ExcludesClosed(t *testing.T) {
	l := feedback.NewMemLedger()
	ctx := context.Background()
	a := addItem(t, l, "architecture", "cand-1")
	addItem(t, l, "architecture", "cand-2")

	if _, err := l.Close(ctx, []string{a.ID}); err != nil {
		t.Fatalf("Close unexpected error: %v", err)
	}

	n, err := l.CountOpen(ctx, "architecture")
	if err != nil {
		t.Fatalf("CountOpen unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountOpen = %d, want 1", n)
	}
}

// ── Close outcome taxonomy ──────────────────────────────────────────────────

func TestClose_PerIDOutcomes(t *testing.T) {
	l := feedback.NewMemLedger()
	ctx := context.Background()
	a := addItem(t, l, "architecture", "cand-1")
	b := addItem(t, l, "architecture", "cand-2")

	// Pre-close b so the second pass sees ALREADY_CLOSED.
	if _, err := l.Close(ctx, []string{b.ID}); err != nil {
		t.Fatalf("Close unexpected error: %v", err)
	}

	outcomes, err := l.Close(ctx, []string{a.ID, b.ID, "never-existed"})
	if err != nil {
		t.Fatalf("Close unexpected error: %v", err)
	}

	want := []feedback.CloseResult{feedback.CloseClosed, feedback.CloseAlreadyClosed, feedback.CloseNotFound}
	if len(outcomes) != len(want) {
		t.Fatalf("Close returned %d outcomes, want %d", len(outcomes), len(want))
	}
	for i, o := range outcomes {
		if o.Result != want[i] {
			t.Errorf("outcomes[%d] = %s, want %s", i, o.Result, want[i])
		}
	}
}

func TestClose_NeverReopens(t *testing.T) {
	l := feedback.NewMemLedger()
	ctx := context.Background()
	a := addItem(t, l, "architecture", "cand-1")

	for i := 0; i < 2; i++ {
		if _, err := l.Close(ctx, []string{a.ID}); err != nil {
			t.Fatalf("Close unexpected error: %v", err)
		}
	}
	n, err := l.CountOpen(ctx, "architecture")
	if err != nil {
		t.Fatalf("CountOpen unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("item reopened: CountOpen = %d, want 0", n)
	}
}

// Malformed ids must yield a per-id NOT_FOUND, same as MemLedger: the uuid
// column would otherwise reject the bind and abort the rest of the batch.
// Screening happens before any query, so no database is needed here.
func TestPGClose_MalformedIDIsNotFound(t *testing.T) {
	l := feedback.NewPGLedger(nil)

	outcomes, err := l.Close(context.Background(), []string{"ghost", "not-a-uuid-either"})
	if err != nil {
		t.Fatalf("Close unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("Close returned %d outcomes, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Result != feedback.CloseNotFound {
			t.Errorf("outcome for %s = %s, want NOT_FOUND", o.ID, o.Result)
		}
	}
}

// ── OpenCounts ──────────────────────────────────────────────────────────────

func TestOpenCounts_PerBaseTotals(t *testing.T) {
	l := feedback.NewMemLedger()
	ctx := context.Background()
	addItem(t, l, "architecture", "cand-1")
	addItem(t, l, "architecture", "cand-2")
	closed := addItem(t, l, "frontend", "cand-3")
	if _, err := l.Close(ctx, []string{closed.ID}); err != nil {
		t.Fatalf("Close unexpected error: %v", err)
	}

	counts, err := l.OpenCounts(ctx)
	if err != nil {
		t.Fatalf("OpenCounts unexpected error: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("OpenCounts returned %d entries, want 1 (frontend has no open items)", len(counts))
	}
	if counts[0].BaseID != "architecture" || counts[0].Open != 2 {
		t.Errorf("OpenCounts[0] = %+v, want architecture/2", counts[0])
	}
}
