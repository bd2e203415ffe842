package portrait_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"hirebot/portrait-service/internal/portrait"
)

func newService() (*portrait.Service, *portrait.MemStore) {
	store := portrait.NewMemStore()
	return portrait.NewService(store, nil), store
}

func mustCreate(t *testing.T, svc *portrait.Service, baseID, position string) *portrait.Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), baseID, rawFields(position))
	if err != nil {
		t.Fatalf("Create(%q) unexpected error: %v", baseID, err)
	}
	return rec
}

func rawFields(position string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"position": position})
	return raw
}

// ── Create / Update lifecycle ───────────────────────────────────────────────

func TestCreate_FirstVersionIsCurrent(t *testing.T) {
	svc, _ := newService()
	rec := mustCreate(t, svc, "architecture", "Platform Architect")

	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}
	if !rec.IsCurrent {
		t.Error("first version must be current")
	}
	if rec.VersionedID != "architecture_v1" {
		t.Errorf("VersionedID = %q, want architecture_v1", rec.VersionedID)
	}
}

func TestCreate_RoundTripFields(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	raw, _ := json.Marshal(map[string]any{
		"position":       "Platform Architect",
		"keywords":       []string{"go", "k8s"},
		"drillQuestions": []string{"Walk me through a rollout"},
	})
	created, err := svc.Create(ctx, "architecture", raw)
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}

	got, err := svc.GetCurrent(ctx, "architecture")
	if err != nil {
		t.Fatalf("GetCurrent unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Fields, created.Fields) {
		t.Errorf("GetCurrent fields = %+v, want %+v", got.Fields, created.Fields)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	svc, _ := newService()
	mustCreate(t, svc, "architecture", "Platform Architect")

	_, err := svc.Create(context.Background(), "architecture", rawFields("Anything"))
	if !errors.Is(err, portrait.ErrAlreadyExists) {
		t.Fatalf("second Create must fail with ErrAlreadyExists, got %v", err)
	}
}

func TestUpdate_CreatesNextVersionAndDemotesPrior(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "Platform Architect")

	rec, err := svc.Update(ctx, "architecture", rawFields("Senior Platform Architect"))
	if err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}
	if rec.Version != 2 || !rec.IsCurrent {
		t.Errorf("Update = version %d current=%v, want version 2 current", rec.Version, rec.IsCurrent)
	}

	// Version 1 is still retrievable by versioned id, demoted.
	v1, err := svc.GetVersion(ctx, "architecture_v1")
	if err != nil {
		t.Fatalf("GetVersion(architecture_v1) unexpected error: %v", err)
	}
	if v1.IsCurrent {
		t.Error("version 1 must be demoted after update")
	}
	if v1.Fields.Position != "Platform Architect" {
		t.Errorf("version 1 position = %q, want original text", v1.Fields.Position)
	}
}

func TestUpdate_UnknownBase(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Update(context.Background(), "ghost", rawFields("x"))
	if !errors.Is(err, portrait.ErrNotFound) {
		t.Fatalf("Update on unknown base must fail with ErrNotFound, got %v", err)
	}
}

func TestUpdate_VersionIsMaxPlusOne(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")

	for _, pos := range []string{"v2", "v3"} {
		if _, err := svc.Update(ctx, "architecture", rawFields(pos)); err != nil {
			t.Fatalf("Update unexpected error: %v", err)
		}
	}
	if err := svc.DeleteVersion(ctx, "architecture_v3"); err != nil {
		t.Fatalf("DeleteVersion unexpected error: %v", err)
	}

	rec, err := svc.Update(ctx, "architecture", rawFields("next"))
	if err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}
	if rec.Version != 3 {
		t.Errorf("Version = %d, want 3 (max remaining was 2)", rec.Version)
	}
}

// ── Switch / Delete ─────────────────────────────────────────────────────────

func TestSwitchVersion_ThenGetCurrent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")
	if _, err := svc.Update(ctx, "architecture", rawFields("v2")); err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}

	rec, err := svc.SwitchVersion(ctx, "architecture", 1)
	if err != nil {
		t.Fatalf("SwitchVersion unexpected error: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("SwitchVersion returned version %d, want 1", rec.Version)
	}

	cur, err := svc.GetCurrent(ctx, "architecture")
	if err != nil {
		t.Fatalf("GetCurrent unexpected error: %v", err)
	}
	if cur.Version != 1 {
		t.Errorf("GetCurrent after switch = version %d, want 1", cur.Version)
	}
}

func TestSwitchVersion_Idempotent(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")
	if _, err := svc.Update(ctx, "architecture", rawFields("v2")); err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}

	first, err := svc.SwitchVersion(ctx, "architecture", 1)
	if err != nil {
		t.Fatalf("first SwitchVersion unexpected error: %v", err)
	}
	second, err := svc.SwitchVersion(ctx, "architecture", 1)
	if err != nil {
		t.Fatalf("second SwitchVersion must succeed as no-op, got %v", err)
	}
	if first.Version != second.Version {
		t.Errorf("idempotent switch changed current version: %d vs %d", first.Version, second.Version)
	}
	assertExactlyOneCurrent(t, store, "architecture")
}

func TestSwitchVersion_UnknownVersion(t *testing.T) {
	svc, _ := newService()
	mustCreate(t, svc, "architecture", "v1")

	_, err := svc.SwitchVersion(context.Background(), "architecture", 9)
	if !errors.Is(err, portrait.ErrNotFound) {
		t.Fatalf("switch to missing version must fail with ErrNotFound, got %v", err)
	}
}

func TestDeleteVersion_CurrentPromotesNextHighest(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")
	if _, err := svc.Update(ctx, "architecture", rawFields("v2")); err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}

	if err := svc.DeleteVersion(ctx, "architecture_v2"); err != nil {
		t.Fatalf("DeleteVersion unexpected error: %v", err)
	}

	cur, err := svc.GetCurrent(ctx, "architecture")
	if err != nil {
		t.Fatalf("GetCurrent unexpected error: %v", err)
	}
	if cur.Version != 1 {
		t.Errorf("current after deleting current v2 = %d, want 1", cur.Version)
	}
	metas, err := svc.List(ctx, "architecture")
	if err != nil {
		t.Fatalf("List unexpected error: %v", err)
	}
	if len(metas) != 1 || metas[0].Version != 1 {
		t.Errorf("versions after delete = %+v, want just version 1", metas)
	}
	assertExactlyOneCurrent(t, store, "architecture")
}

func TestDeleteVersion_NonCurrentKeepsPointer(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")
	if _, err := svc.Update(ctx, "architecture", rawFields("v2")); err != nil {
		t.Fatalf("Update unexpected error: %v", err)
	}

	if err := svc.DeleteVersion(ctx, "architecture_v1"); err != nil {
		t.Fatalf("DeleteVersion unexpected error: %v", err)
	}
	cur, err := svc.GetCurrent(ctx, "architecture")
	if err != nil {
		t.Fatalf("GetCurrent unexpected error: %v", err)
	}
	if cur.Version != 2 {
		t.Errorf("deleting non-current version moved the pointer to %d", cur.Version)
	}
	assertExactlyOneCurrent(t, store, "architecture")
}

func TestDeleteVersion_LastVersionForbidden(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")

	err := svc.DeleteVersion(ctx, "architecture_v1")
	if !errors.Is(err, portrait.ErrInvalidOperation) {
		t.Fatalf("deleting sole version must fail with ErrInvalidOperation, got %v", err)
	}

	// Store unchanged.
	cur, err := svc.GetCurrent(ctx, "architecture")
	if err != nil || cur.Version != 1 || !cur.IsCurrent {
		t.Errorf("store changed by forbidden delete: rec=%+v err=%v", cur, err)
	}
}

func TestDeleteVersion_MalformedID(t *testing.T) {
	svc, _ := newService()
	var ve *portrait.ValidationError
	if err := svc.DeleteVersion(context.Background(), "no-version-suffix"); !errors.As(err, &ve) {
		t.Fatalf("malformed versioned id must yield *ValidationError, got %v", err)
	}
}

// ── List ────────────────────────────────────────────────────────────────────

func TestList_OrderedMetadata(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "v1")
	for _, pos := range []string{"v2", "v3"} {
		if _, err := svc.Update(ctx, "architecture", rawFields(pos)); err != nil {
			t.Fatalf("Update unexpected error: %v", err)
		}
	}

	metas, err := svc.List(ctx, "architecture")
	if err != nil {
		t.Fatalf("List unexpected error: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(metas))
	}
	for i, m := range metas {
		if m.Version != i+1 {
			t.Errorf("metas[%d].Version = %d, want %d (ascending order)", i, m.Version, i+1)
		}
		if m.IsCurrent != (m.Version == 3) {
			t.Errorf("metas[%d] current flag wrong: %+v", i, m)
		}
	}
}

func TestList_UnknownBase(t *testing.T) {
	svc, _ := newService()
	if _, err := svc.List(context.Background(), "ghost"); !errors.Is(err, portrait.ErrNotFound) {
		t.Fatalf("List on unknown base must fail with ErrNotFound, got %v", err)
	}
}

// ── Exactly-one-current invariant under concurrent writers ─────────────────

// Interleaves insert / switch / delete writers on one base id while a reader
// continuously snapshots the version list. Every committed snapshot must show
// exactly one current version.
func TestConcurrentWriters_ExactlyOneCurrent(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	mustCreate(t, svc, "architecture", "seed")

	const (
		writers      = 8
		opsPerWriter = 50
	)

	done := make(chan struct{})
	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			recs, err := store.ListVersions(ctx, "architecture")
			if err != nil {
				t.Errorf("reader ListVersions error: %v", err)
				return
			}
			if n := countCurrent(recs); len(recs) > 0 && n != 1 {
				t.Errorf("reader observed %d current versions (records=%d)", n, len(recs))
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerWriter; i++ {
				var err error
				switch rng.Intn(3) {
				case 0:
					_, err = svc.Update(ctx, "architecture", rawFields("concurrent"))
				case 1:
					_, err = svc.SwitchVersion(ctx, "architecture", rng.Intn(writers*opsPerWriter)+1)
				case 2:
					err = svc.DeleteVersion(ctx, portrait.VersionedID("architecture", rng.Intn(writers*opsPerWriter)+1))
				}
				// Races legitimately hit missing versions and the
				// last-version guard; anything else is a failure.
				if err != nil && !errors.Is(err, portrait.ErrNotFound) && !errors.Is(err, portrait.ErrInvalidOperation) {
					t.Errorf("writer op error: %v", err)
					return
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()
	close(done)
	readerWG.Wait()

	assertExactlyOneCurrent(t, store, "architecture")
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func countCurrent(recs []portrait.Record) int {
	n := 0
	for _, r := range recs {
		if r.IsCurrent {
			n++
		}
	}
	return n
}

func assertExactlyOneCurrent(t *testing.T, store *portrait.MemStore, baseID string) {
	t.Helper()
	recs, err := store.ListVersions(context.Background(), baseID)
	if err != nil {
		t.Fatalf("ListVersions unexpected error: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("base id has no versions left")
	}
	if n := countCurrent(recs); n != 1 {
		t.Fatalf("exactly-one-current violated: %d current of %d versions", n, len(recs))
	}
}
