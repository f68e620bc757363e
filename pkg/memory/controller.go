package memory

import (
	"fmt"
	"iter"
	"slices"
)

// Control surface consumed by the host: toggling automatic collection,
// threshold configuration, and read-only introspection for monitoring and
// leak hunting. Disable gates only the automatic trigger; manual Collect
// calls always run.

// Enable allows the allocation-threshold check to trigger automatic
// collection passes again. Pending allocation counts are preserved.
func (e *Engine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

// Disable stops automatic triggering. Manual collection is unaffected and
// pending allocation counts keep accumulating.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
}

// IsEnabled reports whether automatic collection is active.
func (e *Engine) IsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetThresholds replaces the three generation thresholds. All values must be
// positive; on failure nothing is changed.
func (e *Engine) SetThresholds(t0, t1, t2 int) error {
	for _, t := range []int{t0, t1, t2} {
		if t <= 0 {
			return fmt.Errorf("threshold %d must be positive: %w", t, ErrInvalidConfiguration)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = [numGenerations]int{t0, t1, t2}
	return nil
}

// Thresholds returns the current generation thresholds.
func (e *Engine) Thresholds() (t0, t1, t2 int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds[0], e.thresholds[1], e.thresholds[2]
}

// Tracked yields the ids of every container object currently in a generation
// bucket. The sequence iterates a snapshot taken when Tracked is called:
// objects reclaimed afterwards still appear, objects allocated afterwards do
// not. Intended for diagnostics and leak hunting.
func (e *Engine) Tracked() iter.Seq[ObjectID] {
	e.mu.Lock()
	snapshot := make([]ObjectID, 0, len(e.gens[0])+len(e.gens[1])+len(e.gens[2]))
	for gen := range e.gens {
		for id := range e.gens[gen] {
			snapshot = append(snapshot, id)
		}
	}
	e.mu.Unlock()
	slices.Sort(snapshot)
	return func(yield func(ObjectID) bool) {
		for _, id := range snapshot {
			if !yield(id) {
				return
			}
		}
	}
}

// statsCounters is the engine-internal tally; Stats exposes a copy.
type statsCounters struct {
	collections   [numGenerations]uint64
	reclaimed     [numGenerations]uint64
	resurrections uint64
}

// Stats is a point-in-time snapshot of collector activity.
type Stats struct {
	// Collections counts completed passes per target generation.
	Collections [numGenerations]uint64
	// Reclaimed counts objects reclaimed by cycle collection per target
	// generation. Eager refcount frees are not included.
	Reclaimed [numGenerations]uint64
	// Resurrections counts objects whose reclamation was aborted because a
	// finalizer hook made them externally reachable again.
	Resurrections uint64
	// LiveObjects is the current object table size, leaves included.
	LiveObjects int
	// TrackedContainers is the number of containers across all buckets.
	TrackedContainers int
}

// Stats returns current collector counters and table sizes.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Collections:       e.stats.collections,
		Reclaimed:         e.stats.reclaimed,
		Resurrections:     e.stats.resurrections,
		LiveObjects:       len(e.objects),
		TrackedContainers: len(e.gens[0]) + len(e.gens[1]) + len(e.gens[2]),
	}
}

// Contains reports whether id names a live object.
func (e *Engine) Contains(id ObjectID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.objects[id]
	return ok
}

// StrongCount returns the current strong count of id.
func (e *Engine) StrongCount(id ObjectID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, err := e.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return obj.strong, nil
}

// IsContainer reports whether id names a container object.
func (e *Engine) IsContainer(id ObjectID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, err := e.lookupLocked(id)
	if err != nil {
		return false, err
	}
	return obj.container, nil
}

// GenerationOf returns the bucket currently holding a container object.
func (e *Engine) GenerationOf(id ObjectID) (Generation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, err := e.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	if !obj.container {
		return 0, fmt.Errorf("object %d is not a container: %w", id, ErrInvalidReference)
	}
	return obj.gen, nil
}
