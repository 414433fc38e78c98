// Package metrics exposes run counters as Prometheus metrics on a private
// registry. The registry is written out as a node-exporter textfile.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventmix"

// Recorder satisfies both mixer.Recorder and shower.Recorder. All methods
// are safe on a nil receiver.
type Recorder struct {
	reg *prometheus.Registry

	sourceReads     *prometheus.CounterVec
	mergedEvents    prometheus.Counter
	mergedParticles prometheus.Counter
	mergedVertices  prometheus.Counter

	pulled             prometheus.Counter
	attempts           *prometheus.CounterVec
	outcomes           *prometheus.CounterVec
	generationFailures prometheus.Counter
	efficiency         prometheus.Gauge
}

// New registers every collector on a fresh registry, labelled with tool.
func New(tool string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"tool": tool}, reg))
	return &Recorder{
		reg: reg,
		sourceReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "source_reads_total",
			Help:      "Events read per input source.",
		}, []string{"source"}),
		mergedEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "merged_events_total",
			Help:      "Merged events written.",
		}),
		mergedParticles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "merged_particles_total",
			Help:      "Particles across merged events.",
		}),
		mergedVertices: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "merged_vertices_total",
			Help:      "Vertices across merged events.",
		}),
		pulled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shower",
			Name:      "events_pulled_total",
			Help:      "Events generated and handed to the retry loop.",
		}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shower",
			Name:      "finalize_attempts_total",
			Help:      "Finalization attempts by result.",
		}, []string{"result"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shower",
			Name:      "outcomes_total",
			Help:      "Retry loop outcomes by terminal phase.",
		}, []string{"phase"}),
		generationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shower",
			Name:      "generation_failures_total",
			Help:      "Transient event generation failures.",
		}),
		efficiency: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shower",
			Name:      "acceptance_efficiency_percent",
			Help:      "Accepted events as a percentage of pulled events.",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) SourceRead(source int) {
	if r == nil {
		return
	}
	r.sourceReads.WithLabelValues(strconv.Itoa(source)).Inc()
}

func (r *Recorder) Merged(particles, vertices int) {
	if r == nil {
		return
	}
	r.mergedEvents.Inc()
	r.mergedParticles.Add(float64(particles))
	r.mergedVertices.Add(float64(vertices))
}

func (r *Recorder) Pulled() {
	if r == nil {
		return
	}
	r.pulled.Inc()
}

// Attempts adds n attempts with result; n <= 0 is ignored.
func (r *Recorder) Attempts(result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.attempts.WithLabelValues(result).Add(float64(n))
}

func (r *Recorder) Outcome(phase string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(phase).Inc()
}

func (r *Recorder) GenerationFailure() {
	if r == nil {
		return
	}
	r.generationFailures.Inc()
}

func (r *Recorder) Efficiency(percent float64) {
	if r == nil {
		return
	}
	r.efficiency.Set(percent)
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically. A nil recorder or empty path writes nothing.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
