package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapters(t *testing.T) {
	c := NewCollector(5, 30)

	f := c.Fleet()
	f.BusStarted()
	f.BusStarted()
	f.BusFinished()
	f.SubStep(true)
	f.SubStep(false)
	f.SubStep(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveBuses))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BusesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SubSteps.WithLabelValues("conflict")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.SubSteps.WithLabelValues("free")))

	c.Loop().RenderQueueDepth(7)
	c.Loop().RenderTaskObserve(time.Millisecond)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.RenderQueue))

	p := c.Publisher()
	p.NATSSetConnected(true)
	p.NATSPublishedInc()
	p.NATSPublishErrInc()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSPublishErrs))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.Speed))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.Substeps))
}

func TestHandler(t *testing.T) {
	c := NewCollector(3, 30)
	c.Fleet().BusStarted()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fleet_buses_started_total 1")
	assert.Contains(t, string(body), "fleet_speed_setting 3")
}
