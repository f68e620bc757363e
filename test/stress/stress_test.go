package stress

import (
	"math/rand"
	"testing"

	"cyclegc/pkg/memory"
)

// Randomized churn against the engine with a seeded generator, checking the
// global invariants that must hold for any mutation history: no object
// survives with a zero stored count, everything unreachable from a root is
// eventually reclaimed by a full collection, and the tracker never loses an
// object.

func TestRandomGraphChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	rng := rand.New(rand.NewSource(1))
	e := memory.NewEngine()
	if err := e.SetThresholds(128, 8, 8); err != nil {
		t.Fatalf("set thresholds failed: %v", err)
	}

	var rooted []memory.ObjectID
	for round := 0; round < 5000; round++ {
		switch rng.Intn(10) {
		case 0, 1, 2, 3:
			rooted = append(rooted, e.AllocContainer())
		case 4, 5, 6:
			if len(rooted) >= 2 {
				from := rooted[rng.Intn(len(rooted))]
				to := rooted[rng.Intn(len(rooted))]
				if e.Contains(from) && e.Contains(to) {
					if err := e.AddEdge(from, to); err != nil {
						t.Fatalf("round %d: add edge: %v", round, err)
					}
				}
			}
		default:
			if len(rooted) > 0 {
				i := rng.Intn(len(rooted))
				id := rooted[i]
				rooted = append(rooted[:i], rooted[i+1:]...)
				if e.Contains(id) {
					if err := e.Release(id); err != nil {
						t.Fatalf("round %d: release: %v", round, err)
					}
				}
			}
		}
	}

	// Drop every remaining root; a full collection must leave the heap
	// empty no matter what tangle the churn produced.
	for _, id := range rooted {
		if e.Contains(id) {
			if err := e.Release(id); err != nil {
				t.Fatalf("final release: %v", err)
			}
		}
	}
	if _, err := e.Collect(); err != nil {
		t.Fatalf("final collect: %v", err)
	}

	stats := e.Stats()
	if stats.LiveObjects != 0 {
		t.Errorf("%d objects leaked after all roots dropped", stats.LiveObjects)
	}
	if stats.TrackedContainers != 0 {
		t.Errorf("%d containers still tracked", stats.TrackedContainers)
	}
}

func TestRepeatedCollectionsStable(t *testing.T) {
	e := memory.NewEngine()

	// A long-lived rooted web plus disposable cycles per round.
	stable := make([]memory.ObjectID, 50)
	for i := range stable {
		stable[i] = e.AllocContainer()
	}
	for i := range stable {
		if err := e.AddEdge(stable[i], stable[(i+1)%len(stable)]); err != nil {
			t.Fatalf("add edge failed: %v", err)
		}
	}

	for round := 0; round < 20; round++ {
		x := e.AllocContainer()
		y := e.AllocContainer()
		if err := e.AddEdge(x, y); err != nil {
			t.Fatalf("add edge failed: %v", err)
		}
		if err := e.AddEdge(y, x); err != nil {
			t.Fatalf("add edge failed: %v", err)
		}
		_ = e.Release(x)
		_ = e.Release(y)

		n, err := e.Collect()
		if err != nil {
			t.Fatalf("collect failed: %v", err)
		}
		if n != 2 {
			t.Errorf("round %d: expected 2 reclaimed, got %d", round, n)
		}
	}

	for _, id := range stable {
		if !e.Contains(id) {
			t.Fatalf("rooted object %d lost", id)
		}
	}
}
