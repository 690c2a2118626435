package prometheus

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/torqlang/torqlang/core/actor"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.Metric {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total uint64
		for _, m := range mf.Metric {
			total += m.GetHistogram().GetSampleCount()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestActorMetricsCountsSpawnsAndHalts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	m.ActorSpawned(actor.Address("a1"))
	m.ActorSpawned(actor.Address("a2"))
	m.ActorHalted(actor.Address("a1"))

	assert.Equal(t, float64(2), counterValue(t, reg, "torq_actors_spawned_total"))
	assert.Equal(t, float64(1), counterValue(t, reg, "torq_actors_halted_total"))
}

func TestActorMetricsMessageDispatchedLabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	m.MessageDispatched(actor.Address("a1"), actor.KindNotify)
	m.MessageDispatched(actor.Address("a1"), actor.KindNotify)
	m.MessageDispatched(actor.Address("a1"), actor.KindRequest)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == "torq_actor_messages_dispatched_total" {
			found = mf
		}
	}
	require.NotNil(t, found)
	byKind := map[string]float64{}
	for _, metric := range found.Metric {
		for _, lbl := range metric.Label {
			if lbl.GetName() == "kind" {
				byKind[lbl.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), byKind["notify"])
	assert.Equal(t, float64(1), byKind["request"])
}

func TestActorMetricsObservesComputeTimeSlice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	m.ComputeTimeSlice(actor.Address("a1"), 5)
	m.ComputeTimeSlice(actor.Address("a1"), 50)

	assert.Equal(t, uint64(2), histogramSampleCount(t, reg, "torq_actor_compute_instructions"))
}
