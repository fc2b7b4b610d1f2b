package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.Enqueued("sightings", 1)
	c.Enqueued("sightings", 2)
	c.Depth("sightings", 1)
	c.Processed("sightings", OutcomeFailed, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.enqueued.WithLabelValues("sightings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.depth.WithLabelValues("sightings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.processed.WithLabelValues("sightings", OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.processed.WithLabelValues("sightings", OutcomeSucceeded)))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Enqueued("reports", 1)
		c.Processed("reports", OutcomeSucceeded, time.Second)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.Enqueued("airports", 1)

	rw := httptest.NewRecorder()
	c.Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	assert.True(t, strings.Contains(rw.Body.String(), `flightrecorder_work_items_enqueued_total{queue="airports"} 1`))
}
