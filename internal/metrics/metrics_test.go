package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesLinkMetrics(t *testing.T) {
	FramesSent.WithLabelValues("color").Inc()
	LinkState.Set(2)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `bledom_link_frames_sent_total{kind="color"}`)
	assert.Contains(t, string(body), "bledom_link_state 2")
}

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(TicksSkipped.WithLabelValues("capture"))
	TicksSkipped.WithLabelValues("capture").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TicksSkipped.WithLabelValues("capture")))
}
