package memory

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Weak references
//
// A weak reference remembers the random birth stamp an object carried when
// the reference was created. It contributes nothing to the strong count, so
// it neither keeps the object alive nor prevents a cycle sweep from
// reclaiming it. Every reclamation path zeroes the object's stamp, which
// invalidates all outstanding weak references in O(1): a dereference simply
// compares stamps. A stale id that the arena later reuses cannot be confused
// with the old object, because the reused slot draws a fresh random stamp.

// WeakRef is a non-owning handle to an object.
type WeakRef struct {
	id    ObjectID
	stamp Stamp
}

// randomStamp draws a random 64-bit birth stamp.
func randomStamp() Stamp {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fallback to a fixed non-zero stamp; weak checks degrade but
		// nothing is unsafe.
		return Stamp(0xDEADBEEF)
	}
	s := Stamp(binary.LittleEndian.Uint64(buf[:]))
	if s == 0 {
		s = 1
	}
	return s
}

// NewWeakRef creates a weak reference to a live object.
func (e *Engine) NewWeakRef(id ObjectID) (WeakRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, err := e.lookupLocked(id)
	if err != nil {
		return WeakRef{}, err
	}
	return WeakRef{id: id, stamp: obj.stamp}, nil
}

// DerefWeak resolves a weak reference to its object id, or fails with
// ErrInvalidReference if the object has been reclaimed since the reference
// was created.
func (e *Engine) DerefWeak(ref WeakRef) (ObjectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[ref.id]
	if !ok || obj.stamp != ref.stamp {
		return 0, fmt.Errorf("weak target %d already reclaimed: %w", ref.id, ErrInvalidReference)
	}
	return ref.id, nil
}

// Get resolves the reference against an engine, reporting whether the target
// is still live. It is the boolean-form counterpart of Engine.DerefWeak.
func (r WeakRef) Get(e *Engine) (ObjectID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[r.id]
	if !ok || obj.stamp != r.stamp {
		return 0, false
	}
	return r.id, true
}

// WeakAlive reports whether the referenced object is still live.
func (e *Engine) WeakAlive(ref WeakRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[ref.id]
	return ok && obj.stamp == ref.stamp
}
