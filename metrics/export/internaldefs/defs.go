package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// CounterDef names one Engine counter for export.
type CounterDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// HistogramDef names one Engine histogram for export.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goGate.MetricLoginSuccess, Name: "gogate_login_success_total", Help: "Successful login attempts."},
	{ID: goGate.MetricLoginFailure, Name: "gogate_login_failure_total", Help: "Failed login attempts, including rate-limited ones."},
	{ID: goGate.MetricLoginRateLimited, Name: "gogate_login_rate_limited_total", Help: "Login attempts rejected by the rate limiter."},
	{ID: goGate.MetricCheckAllow, Name: "gogate_check_allow_total", Help: "Authorization checks that allowed the request."},
	{ID: goGate.MetricCheckDeny, Name: "gogate_check_deny_total", Help: "Authorization checks that denied the request."},
	{ID: goGate.MetricSessionCreated, Name: "gogate_session_created_total", Help: "Created sessions."},
	{ID: goGate.MetricSessionExpired, Name: "gogate_session_expired_total", Help: "Sessions removed on validation after a timeout."},
	{ID: goGate.MetricSessionNotFound, Name: "gogate_session_not_found_total", Help: "Validations of unknown session ids."},
	{ID: goGate.MetricLogout, Name: "gogate_logout_total", Help: "Logout operations."},
	{ID: goGate.MetricRegistrationCreated, Name: "gogate_registration_created_total", Help: "Pending registrations created."},
	{ID: goGate.MetricRegistrationConfirmed, Name: "gogate_registration_confirmed_total", Help: "Registrations confirmed into accounts."},
	{ID: goGate.MetricRegistrationExpired, Name: "gogate_registration_expired_total", Help: "Registrations that expired or were purged."},
	{ID: goGate.MetricPasswordResetRequest, Name: "gogate_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: goGate.MetricPasswordResetSuccess, Name: "gogate_password_reset_success_total", Help: "Completed password resets."},
	{ID: goGate.MetricPasswordResetFailure, Name: "gogate_password_reset_failure_total", Help: "Rejected password reset requests and tokens."},
	{ID: goGate.MetricPasswordUpgraded, Name: "gogate_password_upgraded_total", Help: "Password hashes rewritten with current parameters on login."},
	{ID: goGate.MetricStoreError, Name: "gogate_store_error_total", Help: "Backend failures surfaced as store unavailable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricCheckLatency, Name: "gogate_check_latency_seconds", Help: "Authorization check latency."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "gogate_audit_dropped_total"

// HistogramBounds are the bucket upper bounds as le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
