package testsupport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MetricValue sums the samples of a collector in the default registry whose labels
// include every pair of labels. Counters and gauges report their value, histograms
// their sample count. A metric that was never touched reads as zero.
func MetricValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gather metrics")

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, pair := range m.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

// AssertMetricDelta asserts that fn moves the metric by exactly delta.
// Tests using it must not run in parallel with code touching the same metric.
func AssertMetricDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := MetricValue(t, name, labels)
	fn()
	after := MetricValue(t, name, labels)

	assert.InDelta(t, delta, after-before, 1e-9, "metric %s%v delta mismatch", name, labels)
}
