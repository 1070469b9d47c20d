package internaldefs

import (
	"github.com/MrEthical07/sessionguard"
)

type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful logins."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed logins, including rejected issued tokens."},
	{ID: sessionguard.MetricLogout, Name: "sessionguard_logout_total", Help: "Explicit logouts."},
	{ID: sessionguard.MetricTokenRejected, Name: "sessionguard_token_rejected_total", Help: "Tokens that failed to decode and forced a logout."},
	{ID: sessionguard.MetricHydrated, Name: "sessionguard_hydrated_total", Help: "Sessions hydrated from the token store."},
	{ID: sessionguard.MetricNavigationAllowed, Name: "sessionguard_navigation_allowed_total", Help: "Navigations allowed by the guard."},
	{ID: sessionguard.MetricNavigationRedirected, Name: "sessionguard_navigation_redirected_total", Help: "Navigations redirected by the guard."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricLoginLatency, Name: "sessionguard_login_latency_seconds", Help: "Credential exchange latency."},
}

const AuditDroppedName = "sessionguard_audit_dropped_total"
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramBounds are the upper bounds in seconds of the first seven buckets;
// the eighth is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels are the le values of the eight buckets, in Prometheus notation.
var BucketLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
