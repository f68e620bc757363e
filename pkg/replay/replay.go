// Package replay executes recorded mutation traces against an engine.
//
// A trace is the engine's view of a host program: a linear sequence of
// allocations, root retains/releases, edge mutations and collection requests,
// with objects named symbolically. Replaying one reproduces a reference-graph
// history without the host runtime, which makes traces useful both as CLI
// input for leak hunting and as fixtures in tests.
package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cyclegc/pkg/memory"
)

// Op is one recorded mutation.
type Op struct {
	// Op is the operation name: alloc, alloc_container, retain, release,
	// edge, unlink, collect, set_finalizer.
	Op string `yaml:"op"`
	// ID names the object for alloc/alloc_container/retain/release.
	ID string `yaml:"id,omitempty"`
	// From and To name the edge endpoints for edge/unlink.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
	// Gen selects the target generation for collect; nil means a full
	// collection.
	Gen *int `yaml:"gen,omitempty"`
}

// Trace is a parsed trace document.
type Trace struct {
	Ops []Op `yaml:"ops"`
}

// Report summarizes a finished replay.
type Report struct {
	// OpsApplied is the number of trace operations executed.
	OpsApplied int
	// Reclaimed is the total object count returned by collect operations
	// in the trace.
	Reclaimed int
	// FinalizersRun counts invocations of hooks installed by set_finalizer
	// ops; a trace cannot carry host code, so the replayer installs a
	// counting hook in its place.
	FinalizersRun int
	// Leaked holds the ids still tracked when the trace ended, mapped back
	// to their trace names. Anything here survived every release and
	// collection the trace performed.
	Leaked map[memory.ObjectID]string
	// Stats is the engine's final counter snapshot.
	Stats memory.Stats
}

// Parse decodes a YAML trace document.
func Parse(data []byte) (*Trace, error) {
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	if len(tr.Ops) == 0 {
		return nil, fmt.Errorf("parse trace: no ops")
	}
	return &tr, nil
}

// Load reads and parses a trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return Parse(data)
}

// Run replays a trace against the engine and reports the outcome. The first
// failing operation aborts the replay with its position in the trace.
func Run(tr *Trace, e *memory.Engine) (*Report, error) {
	names := make(map[string]memory.ObjectID)
	rep := &Report{Leaked: make(map[memory.ObjectID]string)}

	resolve := func(name string) (memory.ObjectID, error) {
		id, ok := names[name]
		if !ok {
			return 0, fmt.Errorf("unknown object name %q", name)
		}
		return id, nil
	}

	for i, op := range tr.Ops {
		if err := applyOp(e, op, names, rep, resolve); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Op, err)
		}
		rep.OpsApplied++
	}

	byID := make(map[memory.ObjectID]string, len(names))
	for name, id := range names {
		byID[id] = name
	}
	for id := range e.Tracked() {
		rep.Leaked[id] = byID[id]
	}
	rep.Stats = e.Stats()
	return rep, nil
}

func applyOp(e *memory.Engine, op Op, names map[string]memory.ObjectID,
	rep *Report, resolve func(string) (memory.ObjectID, error)) error {
	switch op.Op {
	case "alloc", "alloc_container":
		if op.ID == "" {
			return fmt.Errorf("missing id")
		}
		if _, exists := names[op.ID]; exists {
			return fmt.Errorf("object name %q reused", op.ID)
		}
		if op.Op == "alloc" {
			names[op.ID] = e.Alloc()
		} else {
			names[op.ID] = e.AllocContainer()
		}
		return nil
	case "retain":
		id, err := resolve(op.ID)
		if err != nil {
			return err
		}
		return e.Retain(id)
	case "release":
		id, err := resolve(op.ID)
		if err != nil {
			return err
		}
		return e.Release(id)
	case "edge":
		from, err := resolve(op.From)
		if err != nil {
			return err
		}
		to, err := resolve(op.To)
		if err != nil {
			return err
		}
		return e.AddEdge(from, to)
	case "unlink":
		from, err := resolve(op.From)
		if err != nil {
			return err
		}
		to, err := resolve(op.To)
		if err != nil {
			return err
		}
		return e.RemoveEdge(from, to)
	case "set_finalizer":
		id, err := resolve(op.ID)
		if err != nil {
			return err
		}
		return e.SetFinalizer(id, func(*memory.Mutator) {
			rep.FinalizersRun++
		})
	case "collect":
		var (
			n   int
			err error
		)
		if op.Gen == nil {
			n, err = e.Collect()
		} else {
			n, err = e.CollectGeneration(memory.Generation(*op.Gen))
		}
		if err != nil {
			return err
		}
		rep.Reclaimed += n
		return nil
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}
