package memory

import "fmt"

// Mutator is the restricted graph-mutation handle handed to finalizer hooks.
//
// Hooks run inside an active collection pass with the engine lock held, so
// they must not call the public Engine methods (those would deadlock). A
// Mutator routes the same operations through the already-held critical
// section. It is valid only for the duration of the hook invocation; the
// collector re-snapshots edges and reachability after hooks run, so any
// mutation a hook performs is observed before anything is reclaimed.
type Mutator struct {
	engine  *Engine
	expired bool
}

func (m *Mutator) check() error {
	if m.expired {
		return fmt.Errorf("finalizer context expired: %w", ErrInvalidReference)
	}
	return nil
}

// Alloc registers a new leaf object.
func (m *Mutator) Alloc() (ObjectID, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.engine.allocLocked(false), nil
}

// AllocContainer registers a new container object. It enters generation 0 but
// cannot trigger a nested automatic pass; one is already running.
func (m *Mutator) AllocContainer() (ObjectID, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.engine.allocLocked(true), nil
}

// Retain increments the strong count of id.
func (m *Mutator) Retain(id ObjectID) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.engine.retainLocked(id)
}

// Release decrements the strong count of id, cascading eagerly on zero.
func (m *Mutator) Release(id ObjectID) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.engine.releaseLocked(id)
}

// AddEdge adds an edge and retains the target.
func (m *Mutator) AddEdge(from, to ObjectID) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.engine.addEdgeLocked(from, to)
}

// RemoveEdge removes one edge occurrence and releases the target.
func (m *Mutator) RemoveEdge(from, to ObjectID) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.engine.removeEdgeLocked(from, to)
}

// Collect always fails: a pass is active, and a nested pass would observe a
// half-analyzed graph. The surrounding pass continues normally.
func (m *Mutator) Collect() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return 0, ErrReentrantCollection
}
