package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zecrep/aggregator/internal/observability/statsd"
)

// Recorder implements statsd.Sink while keeping an in-process snapshot of
// everything emitted, so metrics can be served from a pull endpoint even when
// no StatsD sink is configured. When a downstream sink is set, every emission
// is forwarded to it as well. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]*timingAgg

	next statsd.Sink
}

var _ statsd.Sink = (*Recorder)(nil)

type timingAgg struct {
	count int64
	total time.Duration
	max   time.Duration
}

// NewRecorder creates a Recorder forwarding to next. A nil next records only.
func NewRecorder(next statsd.Sink) *Recorder {
	return &Recorder{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]*timingAgg),
		next:     next,
	}
}

// Count increments a counter metric.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	key := seriesKey(name, tags)

	r.mu.Lock()
	r.counters[key] += value
	r.mu.Unlock()

	if r.next != nil {
		r.next.Count(name, value, tags)
	}
}

// Gauge records the current value for a gauge metric.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	key := seriesKey(name, tags)

	r.mu.Lock()
	r.gauges[key] = value
	r.mu.Unlock()

	if r.next != nil {
		r.next.Gauge(name, value, tags)
	}
}

// Timing records a timing metric.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	key := seriesKey(name, tags)

	r.mu.Lock()
	agg, ok := r.timings[key]
	if !ok {
		agg = &timingAgg{}
		r.timings[key] = agg
	}
	agg.count++
	agg.total += value
	if value > agg.max {
		agg.max = value
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.Timing(name, value, tags)
	}
}

// TimingSummary is the aggregated view of one timing series.
type TimingSummary struct {
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of everything recorded.
type Snapshot struct {
	Counters map[string]int64         `json:"counters"`
	Gauges   map[string]float64       `json:"gauges"`
	Timings  map[string]TimingSummary `json:"timings"`
}

// Snapshot returns a copy of the recorded series.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]float64, len(r.gauges)),
		Timings:  make(map[string]TimingSummary, len(r.timings)),
	}
	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	for k, v := range r.gauges {
		snap.Gauges[k] = v
	}
	for k, agg := range r.timings {
		avg := float64(0)
		if agg.count > 0 {
			avg = float64(agg.total) / float64(agg.count) / float64(time.Millisecond)
		}
		snap.Timings[k] = TimingSummary{
			Count: agg.count,
			AvgMs: avg,
			MaxMs: float64(agg.max) / float64(time.Millisecond),
		}
	}
	return snap
}

// seriesKey renders a stable identity for a metric name plus tag set, e.g.
// job.transition{result:success,transition:complete}.
func seriesKey(name string, tags map[string]string) string {
	normalized := statsd.NormalizeMetricName(name)
	if len(tags) == 0 {
		return normalized
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + ":" + tags[k]
	}
	return normalized + "{" + strings.Join(pairs, ",") + "}"
}
