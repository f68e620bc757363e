package memory

import (
	"fmt"
	"log/slog"
	"sync"
)

// Hybrid memory reclamation engine
//
// Two cooperating mechanisms manage object lifetimes:
//
//  1. Eager reference counting: every Retain/Release/edge mutation updates
//     strong counts synchronously, and an object is dismantled the instant
//     its count reaches zero. This path never waits for the collector.
//  2. Generational cycle collection: container objects (objects that can
//     hold outgoing references) are tracked in three age buckets; a
//     threshold-triggered sweep finds subgraphs kept alive only by their own
//     internal references and reclaims them. The sweep exists solely for
//     graphs the counting path can never free.
//
// The engine assumes a single logical mutator, mirroring a global
// interpreter-style guarantee: one exclusive lock serializes every graph
// mutation and the whole of each collection pass. Traversal correctness
// depends on the graph being quiescent during marking, so the lock is
// deliberately coarse.

// DefaultThresholds are the allocation/cascade thresholds applied to a new
// engine: gen0 collects after 700 net container allocations, gen1 after 10
// gen0 passes, gen2 after 10 gen1 passes.
var DefaultThresholds = [numGenerations]int{700, 10, 10}

// Engine owns the object table, the reference graph, and the generational
// collector state. Construct one per isolated heap; there is no hidden
// process-global instance.
type Engine struct {
	mu sync.Mutex

	objects map[ObjectID]*object
	nextID  ObjectID

	gens       [numGenerations]map[ObjectID]struct{}
	counts     [numGenerations]int
	thresholds [numGenerations]int

	enabled    bool
	collecting bool

	stats   statsCounters
	log     *slog.Logger
	metrics *Metrics
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the structured logger used for collection diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics attaches a metrics set; the engine updates it on allocation,
// reclamation and every collection pass.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine with automatic collection enabled and the
// default thresholds.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		objects:    make(map[ObjectID]*object),
		nextID:     1,
		thresholds: DefaultThresholds,
		enabled:    true,
		log:        slog.Default(),
	}
	for i := range e.gens {
		e.gens[i] = make(map[ObjectID]struct{})
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Alloc registers a new leaf (non-container) object and returns its id. The
// object starts with a strong count of one, owned by the caller's binding.
func (e *Engine) Alloc() ObjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocLocked(false)
}

// AllocContainer registers a new container object in generation 0 and returns
// its id. The allocation counts toward the gen0 threshold; crossing it while
// automatic collection is enabled triggers a pass before this call returns.
func (e *Engine) AllocContainer() ObjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.allocLocked(true)
	e.maybeCollectLocked()
	return id
}

// Retain increments the strong count of id. The host calls this when a root
// binding (stack slot, global) starts referencing the object.
func (e *Engine) Retain(id ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retainLocked(id)
}

// Release decrements the strong count of id. On the transition to zero the
// object's outgoing edges are released recursively, it leaves its generation
// bucket, and it is deallocated - all before Release returns.
func (e *Engine) Release(id ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseLocked(id)
}

// AddEdge appends an edge from one container to another object and retains
// the target. Every occurrence of the edge holds exactly one strong unit on
// the target.
func (e *Engine) AddEdge(from, to ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addEdgeLocked(from, to)
}

// RemoveEdge removes one occurrence of the edge from->to and releases the
// target once.
func (e *Engine) RemoveEdge(from, to ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeEdgeLocked(from, to)
}

// SetFinalizer installs a pre-destruction hook on id. The hook fires at most
// once, during the collection pass that dooms the object. Passing nil clears
// a previously installed hook.
func (e *Engine) SetFinalizer(id ObjectID, fn Finalizer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	obj.finalizer = fn
	return nil
}

// --- internals, engine lock held ---

func (e *Engine) lookupLocked(id ObjectID) (*object, error) {
	obj, ok := e.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %d: %w", id, ErrInvalidReference)
	}
	return obj, nil
}

func (e *Engine) allocLocked(container bool) ObjectID {
	id := e.nextID
	e.nextID++
	obj := &object{
		id:        id,
		strong:    1,
		container: container,
		stamp:     randomStamp(),
	}
	e.objects[id] = obj
	if container {
		obj.gen = Gen0
		e.gens[Gen0][id] = struct{}{}
		e.counts[Gen0]++
		if e.metrics != nil {
			e.metrics.trackedObjects.WithLabelValues(genLabels[Gen0]).Inc()
		}
	}
	if e.metrics != nil {
		e.metrics.liveObjects.Inc()
	}
	return id
}

func (e *Engine) retainLocked(id ObjectID) error {
	obj, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	obj.strong++
	return nil
}

func (e *Engine) releaseLocked(id ObjectID) error {
	obj, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if obj.freeing {
		// Mid-dismantle: the cascade that set the flag owns this object's
		// fate, and its remaining count is moot.
		return nil
	}
	obj.strong--
	if obj.strong > 0 {
		return nil
	}
	e.destroyLocked(obj)
	return nil
}

// destroyLocked dismantles an object whose count hit zero: break every
// outgoing edge (recursing through targets that also drop to zero), detach it
// from its bucket, then drop it from the table.
func (e *Engine) destroyLocked(obj *object) {
	obj.freeing = true
	out := obj.out
	obj.out = nil
	for _, target := range out {
		t, ok := e.objects[target]
		if !ok || t.freeing {
			continue
		}
		_ = e.releaseLocked(target)
	}
	e.dropLocked(obj)
}

// dropLocked removes a (fully severed) object from the tracker and the table
// and invalidates its weak stamp.
func (e *Engine) dropLocked(obj *object) {
	if obj.container {
		e.untrackLocked(obj)
	}
	obj.stamp = 0
	delete(e.objects, obj.id)
	if e.metrics != nil {
		e.metrics.liveObjects.Dec()
	}
}

func (e *Engine) addEdgeLocked(from, to ObjectID) error {
	src, err := e.lookupLocked(from)
	if err != nil {
		return err
	}
	if !src.container {
		return fmt.Errorf("object %d is not a container: %w", from, ErrInvalidReference)
	}
	dst, err := e.lookupLocked(to)
	if err != nil {
		return err
	}
	src.out = append(src.out, to)
	dst.strong++
	return nil
}

func (e *Engine) removeEdgeLocked(from, to ObjectID) error {
	src, err := e.lookupLocked(from)
	if err != nil {
		return err
	}
	if _, err := e.lookupLocked(to); err != nil {
		return err
	}
	for i, target := range src.out {
		if target != to {
			continue
		}
		src.out = append(src.out[:i], src.out[i+1:]...)
		return e.releaseLocked(to)
	}
	return fmt.Errorf("no edge %d->%d: %w", from, to, ErrInvalidReference)
}
