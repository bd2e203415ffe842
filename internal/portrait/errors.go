package portrait

import "fmt"

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when a base id, version or versioned id does not exist.
var ErrNotFound = fmt.Errorf("portrait not found")

// ErrAlreadyExists is returned by Create when the base id already has versions.
var ErrAlreadyExists = fmt.Errorf("portrait already exists")

// ErrInvalidOperation is returned when an operation would break an invariant,
// e.g. deleting the last remaining version of a portrait.
var ErrInvalidOperation = fmt.Errorf("invalid operation")

// ErrConflict is returned when a concurrent-write race persists after the
// store's bounded retries.
var ErrConflict = fmt.Errorf("concurrent write conflict")

// ErrUnavailable is returned when the backing store stays unreachable after
// the store's bounded retries.
var ErrUnavailable = fmt.Errorf("store unavailable")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
