package internaldefs

import (
	"github.com/MrEthical07/authclient"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: authclient.MetricBootstrapSuccess, Name: "authclient_bootstrap_success_total", Help: "Bootstraps that confirmed a persisted token."},
	{ID: authclient.MetricBootstrapFailure, Name: "authclient_bootstrap_failure_total", Help: "Bootstraps that discarded a persisted token."},
	{ID: authclient.MetricBootstrapAnonymous, Name: "authclient_bootstrap_anonymous_total", Help: "Bootstraps that found no persisted token."},
	{ID: authclient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricLoginDiscarded, Name: "authclient_login_discarded_total", Help: "Login responses discarded after a concurrent logout."},
	{ID: authclient.MetricRegisterSuccess, Name: "authclient_register_success_total", Help: "Successful registrations."},
	{ID: authclient.MetricRegisterFailure, Name: "authclient_register_failure_total", Help: "Failed registrations."},
	{ID: authclient.MetricLogout, Name: "authclient_logout_total", Help: "User-initiated logouts that changed state."},
	{ID: authclient.MetricForcedLogout, Name: "authclient_forced_logout_total", Help: "Logouts forced by an unauthorized response."},
	{ID: authclient.MetricUnauthorizedSuppressed, Name: "authclient_unauthorized_suppressed_total", Help: "Unauthorized responses that arrived after the session already ended."},
	{ID: authclient.MetricRefreshSuccess, Name: "authclient_refresh_success_total", Help: "Successful profile refreshes."},
	{ID: authclient.MetricRefreshFailure, Name: "authclient_refresh_failure_total", Help: "Failed profile refreshes."},
	{ID: authclient.MetricRequestSuccess, Name: "authclient_request_success_total", Help: "Gateway requests that returned 2xx."},
	{ID: authclient.MetricRequestUnauthorized, Name: "authclient_request_unauthorized_total", Help: "Gateway requests classified as unauthorized."},
	{ID: authclient.MetricRequestForbidden, Name: "authclient_request_forbidden_total", Help: "Gateway requests classified as forbidden."},
	{ID: authclient.MetricRequestNotFound, Name: "authclient_request_not_found_total", Help: "Gateway requests classified as not found."},
	{ID: authclient.MetricRequestValidationFailed, Name: "authclient_request_validation_failed_total", Help: "Gateway requests rejected with field errors."},
	{ID: authclient.MetricRequestClientError, Name: "authclient_request_client_error_total", Help: "Gateway requests classified as other client errors."},
	{ID: authclient.MetricRequestServerError, Name: "authclient_request_server_error_total", Help: "Gateway requests classified as server errors."},
	{ID: authclient.MetricRequestNetworkError, Name: "authclient_request_network_error_total", Help: "Gateway requests that received no response."},
	{ID: authclient.MetricRequestMalformed, Name: "authclient_request_malformed_total", Help: "Gateway responses that could not be decoded."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRequestLatency, Name: "authclient_request_duration_seconds", Help: "Gateway round-trip latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds; the final bucket is +Inf.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix is used by exporters without native histogram labels.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "authclient_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
