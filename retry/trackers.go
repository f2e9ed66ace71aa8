package retry

import (
	"time"

	"github.com/cantrip-labs/resily/hedge"
	"github.com/cantrip-labs/resily/policy"
)

// getTracker returns the latency tracker backing key, creating it on first
// use. hedge.LatencyTrigger consults these trackers to decide whether a
// hedge should fire based on observed percentile latency.
func (e *Executor) getTracker(key policy.PolicyKey) hedge.LatencyTracker {
	e.trackerMu.Lock()
	defer e.trackerMu.Unlock()
	if e.trackers == nil {
		e.trackers = make(map[policy.PolicyKey]hedge.LatencyTracker)
	}
	t, ok := e.trackers[key]
	if !ok {
		t = hedge.NewRingBufferTracker(256)
		e.trackers[key] = t
	}
	return t
}

// observeLatency records a completed attempt's duration against key's
// tracker so future latency-percentile hedge decisions reflect it.
func (e *Executor) observeLatency(key policy.PolicyKey, d time.Duration) {
	e.getTracker(key).Observe(d)
}
