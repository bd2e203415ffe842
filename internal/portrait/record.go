// Package portrait contains the pure business logic for job portraits.
//
// A job portrait is a versioned entity: every edit creates a new immutable
// version record, and exactly one version per base id is marked current at
// any time. The package is transport-agnostic — it is used by the HTTP
// layer (httpapi package) and by the publish coordinator.
package portrait

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ─── Records ─────────────────────────────────────────────────────────────────

// Record is one immutable version of a job portrait.
type Record struct {
	BaseID      string    `json:"baseId"`
	Version     int       `json:"version"`
	VersionedID string    `json:"versionedId"`
	IsCurrent   bool      `json:"isCurrent"`
	Fields      Fields    `json:"fields"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VersionMeta is the cheap listing shape: version bookkeeping without the
// full field payload.
type VersionMeta struct {
	Version   int       `json:"version"`
	IsCurrent bool      `json:"isCurrent"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meta returns the listing view of a record.
func (r *Record) Meta() VersionMeta {
	return VersionMeta{Version: r.Version, IsCurrent: r.IsCurrent, CreatedAt: r.CreatedAt}
}

// ─── Versioned ids ────────────────────────────────────────────────────────────

// VersionedID derives the unique per-version identifier, e.g. "architecture_v3".
func VersionedID(baseID string, version int) string {
	return fmt.Sprintf("%s_v%d", baseID, version)
}

// ParseVersionedID splits a versioned id back into (baseID, version).
// The base id may itself contain underscores; the version suffix is the
// last "_v<N>" segment.
func ParseVersionedID(id string) (string, int, error) {
	i := strings.LastIndex(id, "_v")
	if i <= 0 || i+2 >= len(id) {
		return "", 0, &ValidationError{Msg: fmt.Sprintf("malformed versioned id %q", id)}
	}
	version, err := strconv.Atoi(id[i+2:])
	if err != nil || version < 1 {
		return "", 0, &ValidationError{Msg: fmt.Sprintf("malformed versioned id %q", id)}
	}
	return id[:i], version, nil
}
