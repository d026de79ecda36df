package pheromone

import "errors"

// Sentinel errors surfaced by store operations. Callers match with
// errors.Is; role runtimes treat LockViolation as "do not act" and
// must never silently absorb TransitionInvalid or StoreCorrupted.
var (
	// ErrLockViolation is returned when a write would cross another role's
	// scope lock.
	ErrLockViolation = errors.New("pheromone: scope lock held by another role")

	// ErrTransitionInvalid is returned when a status update requests a state
	// transition not present in the table. This is a fatal programming
	// error and must not be silently reverted.
	ErrTransitionInvalid = errors.New("pheromone: invalid state transition")

	// ErrStoreCorrupted is returned when a persisted map artifact cannot be
	// read back. Fatal: the run terminates after a best-effort manifest dump.
	ErrStoreCorrupted = errors.New("pheromone: store artifact corrupted")

	// ErrUnknownField is returned by update() when a field_changes key does
	// not correspond to a known entry field.
	ErrUnknownField = errors.New("pheromone: unknown field")

	// ErrNotFound is returned by read_one and update when no entry exists
	// for the given file id.
	ErrNotFound = errors.New("pheromone: entry not found")
)
