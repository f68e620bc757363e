package memory

// ObjectID is a stable arena handle. Identity comparisons and graph edges use
// ids rather than pointers so that mutually-owning structures can be expressed
// without native ownership cycles.
type ObjectID uint64

// Stamp is a random 64-bit birth stamp.
//
// Each object receives a fresh stamp at allocation and the stamp is zeroed on
// reclamation, so any weak reference that remembered the stamp can detect
// use-after-free in O(1). Collision probability per check is 1/2^64.
type Stamp uint64

// Generation indexes one of the three age buckets. Gen0 is the youngest and
// is scanned most often; survivors of a collection pass are promoted one
// generation, capped at Gen2.
type Generation int

const (
	Gen0 Generation = iota
	Gen1
	Gen2

	numGenerations = 3
)

// object is one allocation unit tracked by the engine.
//
// strong counts every live reference to the object: host root bindings plus
// one unit per occurrence in another object's outgoing edge list. An object
// whose strong count reaches zero is dismantled immediately; a stored zero
// count is never observable.
type object struct {
	id        ObjectID
	strong    int
	container bool
	gen       Generation
	out       []ObjectID // outgoing edges; one strong unit on each target
	stamp     Stamp

	// freeing is set while a release cascade or a sweep is dismantling the
	// object, to stop self-referential graphs from re-entering it.
	freeing bool

	finalizer Finalizer
	finalized bool
}

// Finalizer is a pre-destruction hook invoked at most once per object, during
// the collection pass that dooms it and before its edges are severed. The
// hook runs inside the pass's critical section and must do all graph access
// through the supplied Mutator.
type Finalizer func(*Mutator)
