package portrait

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store. A single mutex serialises every operation,
// so any snapshot a reader takes is a committed state — the same guarantee
// PGStore gets from transactions. Used by tests and local development.
type MemStore struct {
	mu      sync.Mutex
	records map[string][]*Record // per base id, version ascending
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]*Record)}
}

func (s *MemStore) GetCurrent(_ context.Context, baseID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records[baseID] {
		if r.IsCurrent {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) GetVersion(_ context.Context, baseID string, version int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records[baseID] {
		if r.Version == version {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListVersions(_ context.Context, baseID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[baseID]
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	return out, nil
}

func (s *MemStore) Insert(_ context.Context, baseID string, fields Fields) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[baseID]
	next := 1
	if n := len(recs); n > 0 {
		next = recs[n-1].Version + 1
	}
	for _, r := range recs {
		r.IsCurrent = false
	}

	rec := &Record{
		BaseID:      baseID,
		Version:     next,
		VersionedID: VersionedID(baseID, next),
		IsCurrent:   true,
		Fields:      fields,
		CreatedAt:   time.Now().UTC(),
	}
	s.records[baseID] = append(recs, rec)

	cp := *rec
	return &cp, nil
}

func (s *MemStore) SwitchCurrent(_ context.Context, baseID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *Record
	for _, r := range s.records[baseID] {
		if r.Version == version {
			target = r
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}

	for _, r := range s.records[baseID] {
		r.IsCurrent = false
	}
	target.IsCurrent = true
	return nil
}

func (s *MemStore) Delete(_ context.Context, baseID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[baseID]
	idx := -1
	for i, r := range recs {
		if r.Version == version {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}
	if len(recs) == 1 {
		return ErrInvalidOperation
	}

	wasCurrent := recs[idx].IsCurrent
	recs = append(recs[:idx], recs[idx+1:]...)
	if wasCurrent {
		// Promote the highest remaining version (slice stays sorted).
		recs[len(recs)-1].IsCurrent = true
	}
	s.records[baseID] = recs
	return nil
}
