// Package prometheus provides a Prometheus implementation of
// actor.ActorMetrics, the one pillar this runtime exposes instrumentation
// for.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/metrics"
)

// promCounter and promHistogram adapt the concrete Prometheus client
// types to this codebase's backend-agnostic core/metrics interfaces,
// the same split the teacher draws between an abstract metrics surface
// and a vendor-specific adapter package.
type promCounter struct{ c prometheus.Counter }

func (p promCounter) Inc()              { p.c.Inc() }
func (p promCounter) Add(delta float64) { p.c.Add(delta) }

type promHistogram struct{ h prometheus.Histogram }

func (p promHistogram) Observe(value float64) { p.h.Observe(value) }

var (
	_ metrics.Counter   = promCounter{}
	_ metrics.Histogram = promHistogram{}
)

// actorMetrics implements actor.ActorMetrics using Prometheus, adapted
// from the teacher's cluster-node metrics to the quantities a local
// actor scheduler actually produces: spawns, halts, dispatched
// envelopes by kind, and the instruction count each compute time slice
// ran for. The two scalar counters and the histogram are held behind
// core/metrics.Counter/Histogram rather than the concrete Prometheus
// types; messagesTotal stays a *prometheus.CounterVec directly since
// core/metrics has no per-label-vector abstraction to route it
// through.
type actorMetrics struct {
	actorsSpawned    metrics.Counter
	actorsHalted     metrics.Counter
	messagesTotal    *prometheus.CounterVec
	computeTimeSlice metrics.Histogram
}

// NewActorMetrics creates a new Prometheus implementation of actor.ActorMetrics.
func NewActorMetrics(reg prometheus.Registerer) actor.ActorMetrics {
	spawned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_actors_spawned_total",
		Help: "Total number of actors spawned",
	})
	halted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_actors_halted_total",
		Help: "Total number of actors halted",
	})
	messagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_actor_messages_dispatched_total",
		Help: "Total number of envelopes dispatched, by kind",
	}, []string{"kind"})
	computeTimeSlice := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "torq_actor_compute_instructions",
		Help:    "Number of kernel instructions run per compute time slice",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})

	reg.MustRegister(spawned, halted, messagesTotal, computeTimeSlice)

	return &actorMetrics{
		actorsSpawned:    promCounter{spawned},
		actorsHalted:     promCounter{halted},
		messagesTotal:    messagesTotal,
		computeTimeSlice: promHistogram{computeTimeSlice},
	}
}

func (m *actorMetrics) ActorSpawned(actor.Address) {
	m.actorsSpawned.Inc()
}

func (m *actorMetrics) ActorHalted(actor.Address) {
	m.actorsHalted.Inc()
}

func (m *actorMetrics) MessageDispatched(_ actor.Address, kind actor.EnvelopeKind) {
	m.messagesTotal.WithLabelValues(kind.String()).Inc()
}

func (m *actorMetrics) ComputeTimeSlice(_ actor.Address, instructionsRun int) {
	m.computeTimeSlice.Observe(float64(instructionsRun))
}

var _ actor.ActorMetrics = (*actorMetrics)(nil)
