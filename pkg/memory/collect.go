package memory

import (
	"fmt"
	"time"
)

// Cycle collection
//
// Reference counting alone cannot free a subgraph whose members keep each
// other alive. The sweep isolates such subgraphs without any access to host
// call-stack roots by splitting every candidate's strong count into an
// internal part (edges arriving from other candidates) and an external part
// (everything else: root bindings and containers outside the candidate set).
// An object with a positive external count is held by someone the sweep
// cannot see, so it and everything it reaches must survive; whatever remains
// unmarked is garbage kept alive purely by its own internal references.
//
// Reclamation severs edges without the eager recursive release for targets
// inside the doomed set - their counts are about to be recomputed relative to
// the whole set, and decrementing them one at a time could dismantle a cycle
// member mid-sweep. Edges leaving the doomed set are released normally and
// may cascade into ordinary eager frees.

// Collect runs a full collection (all three generations) and returns the
// number of objects reclaimed. Manual collection bypasses the enabled gate.
func (e *Engine) Collect() (int, error) {
	return e.CollectGeneration(Gen2)
}

// CollectGeneration sweeps generation g and every younger bucket, returning
// the number of objects reclaimed. It fails with ErrReentrantCollection if a
// pass is already running.
func (e *Engine) CollectGeneration(g Generation) (int, error) {
	if g < Gen0 || g > Gen2 {
		return 0, fmt.Errorf("generation %d out of range: %w", g, ErrInvalidConfiguration)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collectLocked(g)
}

func (e *Engine) collectLocked(g Generation) (int, error) {
	if e.collecting {
		return 0, ErrReentrantCollection
	}
	e.collecting = true
	defer func() { e.collecting = false }()

	start := time.Now()

	// A pass over generation g always covers every younger bucket as well.
	candidates := make(map[ObjectID]struct{})
	for gen := Gen0; gen <= g; gen++ {
		for id := range e.gens[gen] {
			candidates[id] = struct{}{}
		}
	}
	scanned := len(candidates)

	reclaimed := 0
	for {
		unreachable := e.unreachableLocked(candidates)
		if len(unreachable) == 0 {
			break
		}
		if !e.runFinalizersLocked(unreachable) {
			reclaimed += e.reclaimLocked(candidates, unreachable)
			break
		}
		// Hooks ran and may have mutated the graph; re-derive reachability
		// from a fresh snapshot before touching anything. Formerly doomed
		// objects that are reachable again were resurrected.
		e.noteResurrectionsLocked(candidates, unreachable)
	}

	e.promoteSurvivorsLocked(candidates, g)

	if g < Gen2 {
		e.counts[g+1]++
	}
	for gen := Gen0; gen <= g; gen++ {
		e.counts[gen] = 0
	}

	e.stats.collections[g]++
	e.stats.reclaimed[g] += uint64(reclaimed)
	if e.metrics != nil {
		e.metrics.collectionsTotal.WithLabelValues(genLabels[g]).Inc()
		e.metrics.reclaimedTotal.WithLabelValues(genLabels[g]).Add(float64(reclaimed))
	}
	e.log.Debug("cycle collection pass complete",
		"generation", int(g),
		"scanned", scanned,
		"reclaimed", reclaimed,
		"duration", time.Since(start))
	return reclaimed, nil
}

// externalCountsLocked isolates each candidate's references from outside the
// candidate set: its strong count minus the incoming edges contributed by
// other candidates. Ids whose objects died since the set was snapped (eager
// cascades, finalizer mutations) are pruned in place.
func (e *Engine) externalCountsLocked(candidates map[ObjectID]struct{}) map[ObjectID]int {
	external := make(map[ObjectID]int, len(candidates))
	for id := range candidates {
		obj, ok := e.objects[id]
		if !ok {
			delete(candidates, id)
			continue
		}
		external[id] = obj.strong
	}
	for id := range external {
		for _, target := range e.objects[id].out {
			if _, in := external[target]; in {
				external[target]--
			}
		}
	}
	return external
}

// unreachableLocked computes the doomed subset of the candidate set.
func (e *Engine) unreachableLocked(candidates map[ObjectID]struct{}) map[ObjectID]struct{} {
	external := e.externalCountsLocked(candidates)

	// Mark everything reachable from an externally held candidate.
	reachable := make(map[ObjectID]struct{}, len(candidates))
	var stack []ObjectID
	for id, ext := range external {
		if ext > 0 {
			reachable[id] = struct{}{}
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, target := range e.objects[id].out {
			if _, in := external[target]; !in {
				continue
			}
			if _, seen := reachable[target]; seen {
				continue
			}
			reachable[target] = struct{}{}
			stack = append(stack, target)
		}
	}

	unreachable := make(map[ObjectID]struct{})
	for id := range candidates {
		if _, ok := reachable[id]; !ok {
			unreachable[id] = struct{}{}
		}
	}
	return unreachable
}

// runFinalizersLocked invokes the pending pre-destruction hooks of the doomed
// set, each at most once per object lifetime. It reports whether any hook ran
// (in which case reachability must be recomputed).
func (e *Engine) runFinalizersLocked(unreachable map[ObjectID]struct{}) bool {
	m := &Mutator{engine: e}
	defer func() { m.expired = true }()

	ran := false
	for id := range unreachable {
		obj, ok := e.objects[id]
		if !ok || obj.finalized || obj.finalizer == nil {
			continue
		}
		obj.finalized = true
		fn := obj.finalizer
		obj.finalizer = nil
		fn(m)
		ran = true
	}
	return ran
}

// noteResurrectionsLocked records doomed objects that a finalizer hook made
// externally reachable again. Reclamation is aborted for the whole rescued
// subgraph, but only objects whose own external count went positive are
// resurrections; the rest were merely reached through one. They all stay
// tracked and fall to a future sweep.
func (e *Engine) noteResurrectionsLocked(candidates, previouslyDoomed map[ObjectID]struct{}) {
	stillDoomed := e.unreachableLocked(candidates)
	external := e.externalCountsLocked(candidates)
	for id := range previouslyDoomed {
		if _, alive := e.objects[id]; !alive {
			continue
		}
		if _, doomed := stillDoomed[id]; doomed {
			continue
		}
		if external[id] <= 0 {
			continue
		}
		e.stats.resurrections++
		if e.metrics != nil {
			e.metrics.resurrectionsTotal.Inc()
		}
		e.log.Warn("object excluded from reclamation",
			"object", uint64(id),
			"err", ErrResurrectionDetected)
	}
}

// reclaimLocked deallocates the doomed set: sever every outgoing edge, then
// drop the objects. Targets inside the set only lose the edge (their counts
// are irrelevant, the whole set dies together); targets outside the set are
// released normally and may cascade.
func (e *Engine) reclaimLocked(candidates, unreachable map[ObjectID]struct{}) int {
	for id := range unreachable {
		if obj, ok := e.objects[id]; ok {
			obj.freeing = true
		}
	}
	for id := range unreachable {
		obj, ok := e.objects[id]
		if !ok {
			continue
		}
		out := obj.out
		obj.out = nil
		for _, target := range out {
			t, ok := e.objects[target]
			if !ok || t.freeing {
				continue
			}
			_ = e.releaseLocked(target)
		}
	}
	reclaimed := 0
	for id := range unreachable {
		obj, ok := e.objects[id]
		if !ok {
			continue
		}
		e.dropLocked(obj)
		delete(candidates, id)
		reclaimed++
	}
	return reclaimed
}

// promoteSurvivorsLocked moves every candidate that outlived the pass into
// the bucket one older than the collected generation.
func (e *Engine) promoteSurvivorsLocked(candidates map[ObjectID]struct{}, g Generation) {
	target := g + 1
	if target > Gen2 {
		target = Gen2
	}
	for id := range candidates {
		obj, ok := e.objects[id]
		if !ok {
			continue
		}
		e.promoteLocked(obj, target)
	}
}
