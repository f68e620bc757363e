package memory

import (
	"errors"
	"testing"
)

func TestSetThresholdsValidation(t *testing.T) {
	e := NewEngine()

	for _, bad := range [][3]int{{0, 10, 10}, {700, -1, 10}, {700, 10, 0}} {
		err := e.SetThresholds(bad[0], bad[1], bad[2])
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("thresholds %v: expected ErrInvalidConfiguration, got %v", bad, err)
		}
	}

	// Rejected configuration must not have partially applied.
	t0, t1, t2 := e.Thresholds()
	if t0 != DefaultThresholds[0] || t1 != DefaultThresholds[1] || t2 != DefaultThresholds[2] {
		t.Errorf("thresholds changed after rejected config: %d %d %d", t0, t1, t2)
	}

	if err := e.SetThresholds(100, 5, 5); err != nil {
		t.Fatalf("valid thresholds rejected: %v", err)
	}
	t0, t1, t2 = e.Thresholds()
	if t0 != 100 || t1 != 5 || t2 != 5 {
		t.Errorf("expected 100 5 5, got %d %d %d", t0, t1, t2)
	}
}

func TestTrackedSnapshotIsolation(t *testing.T) {
	e := NewEngine()

	a := e.AllocContainer()
	b := e.AllocContainer()
	leaf := e.Alloc()

	seq := e.Tracked()

	// Mutations after the call are invisible to the sequence.
	later := e.AllocContainer()
	if err := e.Release(b); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	got := make(map[ObjectID]bool)
	for id := range seq {
		got[id] = true
	}
	if !got[a] || !got[b] {
		t.Error("snapshot should include every container live at call time")
	}
	if got[later] {
		t.Error("snapshot should not include objects allocated after the call")
	}
	if got[leaf] {
		t.Error("leaf objects are never tracked")
	}
}

func TestTrackedEarlyStop(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 10; i++ {
		e.AllocContainer()
	}

	n := 0
	for range e.Tracked() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("expected early termination after 3, got %d", n)
	}
}

func TestStatsCounts(t *testing.T) {
	e := NewEngine()

	e.Alloc()
	e.AllocContainer()
	stats := e.Stats()
	if stats.LiveObjects != 2 {
		t.Errorf("expected 2 live objects, got %d", stats.LiveObjects)
	}
	if stats.TrackedContainers != 1 {
		t.Errorf("expected 1 tracked container, got %d", stats.TrackedContainers)
	}

	makeCycle(t, e)
	if _, err := e.Collect(); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	stats = e.Stats()
	if stats.Collections[Gen2] != 1 {
		t.Errorf("expected 1 gen2 collection, got %d", stats.Collections[Gen2])
	}
	if stats.Reclaimed[Gen2] != 2 {
		t.Errorf("expected 2 reclaimed in gen2 stats, got %d", stats.Reclaimed[Gen2])
	}
}
