package portrait

import "context"

// Store is the record-persistence capability the service is built on.
// Implementations own the versioning invariant: for every base id with at
// least one version, exactly one version is current — no reader may observe
// zero or two current versions, even while concurrent writers race.
//
// PGStore is the production implementation; MemStore backs tests and local
// development.
type Store interface {
	// GetCurrent returns the record with is_current = true for baseID.
	// Returns ErrNotFound when the base id has no versions.
	GetCurrent(ctx context.Context, baseID string) (*Record, error)

	// GetVersion returns the exact version regardless of the current flag.
	GetVersion(ctx context.Context, baseID string, version int) (*Record, error)

	// ListVersions returns all versions of baseID ordered by version
	// ascending. An unknown base id yields an empty slice, not an error.
	ListVersions(ctx context.Context, baseID string) ([]Record, error)

	// Insert creates version max(existing)+1 (1 for a fresh base id), marks
	// it current and demotes the previous current version in the same
	// atomic operation.
	Insert(ctx context.Context, baseID string, fields Fields) (*Record, error)

	// SwitchCurrent makes the given version current. Succeeds as a no-op
	// when the version is already current; returns ErrNotFound when the
	// version does not exist.
	SwitchCurrent(ctx context.Context, baseID string, version int) error

	// Delete removes one version. Returns ErrInvalidOperation when it is
	// the only remaining version for its base id. When the deleted version
	// was current, the next-highest remaining version is promoted in the
	// same atomic operation.
	Delete(ctx context.Context, baseID string, version int) error
}
