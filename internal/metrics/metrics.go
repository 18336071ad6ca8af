package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// series is one counter name with one label set
type series struct {
	value atomic.Int64
	attrs attribute.Set
}

// Registry counts events for /metrics and forwards them to OpenTelemetry.
type Registry struct {
	mu          sync.RWMutex
	series      map[string]*series
	meter       metric.Meter
	instruments map[string]metric.Int64Counter
}

func NewRegistry() *Registry {
	return &Registry{
		series:      make(map[string]*series),
		meter:       otel.GetMeterProvider().Meter("canvas2image"),
		instruments: make(map[string]metric.Int64Counter),
	}
}

func labelSet(labels map[string]string) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		kvs = append(kvs, attribute.String(k, v))
	}
	return attribute.NewSet(kvs...)
}

// seriesKey renders name{k=v,...}; the set encoder sorts keys.
func seriesKey(name string, set attribute.Set) string {
	if set.Len() == 0 {
		return name
	}
	return name + "{" + set.Encoded(attribute.DefaultEncoder()) + "}"
}

// Inc adds n to the counter. Nil registries drop it.
func (r *Registry) Inc(ctx context.Context, name string, labels map[string]string, n int64) {
	if r == nil {
		return
	}
	set := labelSet(labels)
	key := seriesKey(name, set)

	r.mu.RLock()
	s, inst := r.series[key], r.instruments[name]
	r.mu.RUnlock()

	if s == nil || inst == nil {
		s, inst = r.register(key, name, set)
	}
	s.value.Add(n)
	if inst != nil {
		inst.Add(ctx, n, metric.WithAttributeSet(s.attrs))
	}
}

func (r *Registry) register(key, name string, set attribute.Set) (*series, metric.Int64Counter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.series[key]
	if s == nil {
		s = &series{attrs: set}
		r.series[key] = s
	}
	inst, ok := r.instruments[name]
	if !ok {
		// A nil instrument still counts locally.
		inst, _ = r.meter.Int64Counter(name)
		r.instruments[name] = inst
	}
	return s, inst
}

func (r *Registry) Value(name string, labels map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s := r.series[seriesKey(name, labelSet(labels))]; s != nil {
		return s.value.Load()
	}
	return 0
}

// SnapshotLines returns "series value" lines sorted by series.
func (r *Registry) SnapshotLines() []string {
	r.mu.RLock()
	lines := make([]string, 0, len(r.series))
	for key, s := range r.series {
		lines = append(lines, fmt.Sprintf("%s %d", key, s.value.Load()))
	}
	r.mu.RUnlock()

	sort.Strings(lines)
	return lines
}

func (r *Registry) Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range r.SnapshotLines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return
		}
	}
}
