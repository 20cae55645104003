package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsCounters(t *testing.T) {
	m := New()

	m.RecordGuardDecision("allow")
	m.RecordGuardDecision("redirect")
	m.RecordGuardDecision("redirect")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("redirect")))

	m.RecordGatewayCall("conversations.insert", nil, time.Millisecond)
	m.RecordGatewayCall("conversations.insert", errors.New("down"), time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("conversations.insert", "error")))

	m.SetActiveSessions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))

	m.RecordRealtimeEvent("messages", "INSERT")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtimeEvents.WithLabelValues("messages", "INSERT")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.IncRequestsInFlight()
		m.DecRequestsInFlight()
		m.RecordGatewayCall("op", nil, time.Millisecond)
		m.RecordGuardDecision("allow")
		m.RecordRealtimeEvent("messages", "UPDATE")
		m.SetActiveSessions(1)
		m.RecordTriage("ok")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/v1/properties", 200, 10*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tenantly_http_requests_total")
}
