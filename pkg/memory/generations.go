package memory

// Generational tracking
//
// Container objects are partitioned into three ordered age buckets. Most
// garbage dies young, so gen0 is swept on an allocation threshold while the
// older buckets are swept exponentially less often: collecting generation g
// zeroes the counters of every generation up to g and advances the counter of
// g+1, so gen1 runs once per threshold[1] gen0 passes and gen2 once per
// threshold[2] gen1 passes. Survivors of a pass are promoted one bucket,
// which keeps long-lived stable structures out of the hot sweep path.

var genLabels = [numGenerations]string{"0", "1", "2"}

// untrackLocked removes a container from its bucket. Eager reclamation also
// walks back the gen0 allocation counter so that freed objects do not keep
// pushing the threshold.
func (e *Engine) untrackLocked(obj *object) {
	if _, ok := e.gens[obj.gen][obj.id]; !ok {
		return
	}
	delete(e.gens[obj.gen], obj.id)
	if e.counts[Gen0] > 0 {
		e.counts[Gen0]--
	}
	if e.metrics != nil {
		e.metrics.trackedObjects.WithLabelValues(genLabels[obj.gen]).Dec()
	}
}

// promoteLocked moves a surviving container to the target bucket.
func (e *Engine) promoteLocked(obj *object, to Generation) {
	if obj.gen == to {
		return
	}
	delete(e.gens[obj.gen], obj.id)
	e.gens[to][obj.id] = struct{}{}
	if e.metrics != nil {
		e.metrics.trackedObjects.WithLabelValues(genLabels[obj.gen]).Dec()
		e.metrics.trackedObjects.WithLabelValues(genLabels[to]).Inc()
	}
	obj.gen = to
}

// maybeCollectLocked runs the automatic trigger check performed on every
// container allocation. The oldest generation whose counter exceeds its
// threshold is collected; collecting it sweeps all younger buckets too.
func (e *Engine) maybeCollectLocked() {
	if !e.enabled || e.collecting {
		return
	}
	if e.counts[Gen0] <= e.thresholds[Gen0] {
		return
	}
	target := Gen0
	for g := Generation(numGenerations - 1); g > Gen0; g-- {
		if e.counts[g] > e.thresholds[g] {
			target = g
			break
		}
	}
	_, _ = e.collectLocked(target)
}
