package memory

import "errors"

// All engine failures are synchronous contract violations reported to the
// immediate caller. There is no background error channel; an operation that
// fails leaves the reference graph exactly as it found it.
var (
	// ErrInvalidReference is returned for operations naming an unknown or
	// already-reclaimed object id. This is a caller bug, not a transient
	// condition - retrying cannot succeed.
	ErrInvalidReference = errors.New("invalid object reference")

	// ErrInvalidConfiguration is returned when a collector tunable is
	// rejected before any state is mutated (e.g. a non-positive threshold).
	ErrInvalidConfiguration = errors.New("invalid collector configuration")

	// ErrReentrantCollection is returned when a collection is requested
	// while a pass is already running, typically from inside a finalizer
	// hook. The original pass continues undisturbed.
	ErrReentrantCollection = errors.New("collection already in progress")

	// ErrResurrectionDetected marks the event of a finalizer hook making a
	// doomed object externally reachable again. The object is excluded from
	// the current pass's reclaimed set and left for a future pass; it is
	// never freed while externally referenced.
	ErrResurrectionDetected = errors.New("finalizer resurrected doomed object")
)
