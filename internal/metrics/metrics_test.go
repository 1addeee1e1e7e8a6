package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Intercepted()
	m.Intercepted()
	m.Filtered()
	m.RelaySent()
	m.RelayFailed()
	m.Received()
	m.Discarded()
	m.Dropped()
	m.SetStoreEvents(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InterceptedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilteredTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelaySentTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayFailedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceivedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscardedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.StoreEvents))
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Intercepted()
		m.Filtered()
		m.RelaySent()
		m.RelayFailed()
		m.Received()
		m.Discarded()
		m.Dropped()
		m.SetStoreEvents(1)
	})
}
