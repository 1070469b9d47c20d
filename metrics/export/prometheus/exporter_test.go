package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess:         7,
				sessionguard.MetricNavigationRedirected: 3,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[sessionguard.MetricID]time.Duration{
				sessionguard.MetricLoginLatency: 4500 * time.Millisecond,
			},
		},
		dropped: 2,
	}
}

func TestCollectCounters(t *testing.T) {
	exp := NewExporter(sampleSource())

	expected := `
# HELP sessionguard_login_success_total Successful logins.
# TYPE sessionguard_login_success_total counter
sessionguard_login_success_total 7
# HELP sessionguard_navigation_redirected_total Navigations redirected by the guard.
# TYPE sessionguard_navigation_redirected_total counter
sessionguard_navigation_redirected_total 3
# HELP sessionguard_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE sessionguard_audit_dropped_total counter
sessionguard_audit_dropped_total 2
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"sessionguard_login_success_total",
		"sessionguard_navigation_redirected_total",
		"sessionguard_audit_dropped_total",
	)
	require.NoError(t, err)
}

func TestCollectHistogramIsCumulative(t *testing.T) {
	exp := NewExporter(sampleSource())

	expected := `
# HELP sessionguard_login_latency_seconds Credential exchange latency.
# TYPE sessionguard_login_latency_seconds histogram
sessionguard_login_latency_seconds_bucket{le="0.005"} 1
sessionguard_login_latency_seconds_bucket{le="0.01"} 3
sessionguard_login_latency_seconds_bucket{le="0.025"} 6
sessionguard_login_latency_seconds_bucket{le="0.05"} 10
sessionguard_login_latency_seconds_bucket{le="0.1"} 15
sessionguard_login_latency_seconds_bucket{le="0.25"} 21
sessionguard_login_latency_seconds_bucket{le="0.5"} 28
sessionguard_login_latency_seconds_bucket{le="+Inf"} 36
sessionguard_login_latency_seconds_sum 4.5
sessionguard_login_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected), "sessionguard_login_latency_seconds")
	require.NoError(t, err)
}

func TestCollectCountsEverySeries(t *testing.T) {
	// 7 counters, 1 histogram, audit dropped
	assert.Equal(t, 9, testutil.CollectAndCount(NewExporter(sampleSource())))
}

func TestHandlerServesExposition(t *testing.T) {
	srv := httptest.NewServer(NewExporter(sampleSource()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sessionguard_login_success_total 7")
	assert.Contains(t, string(body), `sessionguard_login_latency_seconds_bucket{le="+Inf"} 36`)
}

func TestExporterOverSession(t *testing.T) {
	s, err := sessionguard.New().Build()
	require.NoError(t, err)
	defer s.Close()

	s.RecordNavigation(true)
	s.RecordNavigation(true)

	expected := `
# HELP sessionguard_navigation_allowed_total Navigations allowed by the guard.
# TYPE sessionguard_navigation_allowed_total counter
sessionguard_navigation_allowed_total 2
`
	require.NoError(t, testutil.CollectAndCompare(NewExporter(s), strings.NewReader(expected), "sessionguard_navigation_allowed_total"))
}

func TestExporterSumTracksSessionLogins(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	ex := exchangeFunc(func() {
		// the exchange takes 250ms on the session clock
		clock = clock.Add(250 * time.Millisecond)
	})
	s, err := sessionguard.New().
		WithExchanger(ex).
		WithDecoder(rejectingDecoder{}).
		WithClock(func() time.Time { return clock }).
		Build()
	require.NoError(t, err)
	defer s.Close()

	_ = s.Login(context.Background(), "alice", "pw")
	_ = s.Login(context.Background(), "alice", "pw")

	expected := `
# HELP sessionguard_login_latency_seconds Credential exchange latency.
# TYPE sessionguard_login_latency_seconds histogram
sessionguard_login_latency_seconds_bucket{le="0.005"} 0
sessionguard_login_latency_seconds_bucket{le="0.01"} 0
sessionguard_login_latency_seconds_bucket{le="0.025"} 0
sessionguard_login_latency_seconds_bucket{le="0.05"} 0
sessionguard_login_latency_seconds_bucket{le="0.1"} 0
sessionguard_login_latency_seconds_bucket{le="0.25"} 2
sessionguard_login_latency_seconds_bucket{le="0.5"} 2
sessionguard_login_latency_seconds_bucket{le="+Inf"} 2
sessionguard_login_latency_seconds_sum 0.5
sessionguard_login_latency_seconds_count 2
`
	require.NoError(t, testutil.CollectAndCompare(NewExporter(s), strings.NewReader(expected), "sessionguard_login_latency_seconds"))
}

type exchangeFunc func()

func (f exchangeFunc) Exchange(context.Context, string, string) (string, error) {
	f()
	return "opaque", nil
}

type rejectingDecoder struct{}

func (rejectingDecoder) Decode(string) (*jwt.Claims, error) {
	return nil, jwt.ErrMalformed
}
