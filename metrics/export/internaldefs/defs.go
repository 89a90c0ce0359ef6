package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// Source is what the exporters read on every collection.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// Series binds one client counter to a label value of its family.
type Series struct {
	ID    goSession.MetricID
	Value string
}

// Family is one exported counter. A family with a LabelKey splits into one
// series per entry; a family without one has exactly one series.
type Family struct {
	Name     string
	Help     string
	LabelKey string
	Series   []Series
}

// Families lists the session counters in exposition order.
var Families = []Family{
	{
		Name: "gosession_logins_total", Help: "Login attempts by result.", LabelKey: "result",
		Series: []Series{
			{ID: goSession.MetricLoginSuccess, Value: "success"},
			{ID: goSession.MetricLoginFailure, Value: "failure"},
		},
	},
	{
		Name: "gosession_registrations_total", Help: "Registration attempts by result.", LabelKey: "result",
		Series: []Series{
			{ID: goSession.MetricRegisterSuccess, Value: "success"},
			{ID: goSession.MetricRegisterFailure, Value: "failure"},
		},
	},
	{
		Name: "gosession_logouts_total", Help: "Logouts.",
		Series: []Series{{ID: goSession.MetricLogout}},
	},
	{
		Name: "gosession_refreshes_total", Help: "Access token renewals by outcome.", LabelKey: "outcome",
		Series: []Series{
			{ID: goSession.MetricRefreshSuccess, Value: "renewed"},
			{ID: goSession.MetricRefreshFailure, Value: "invalidated"},
			{ID: goSession.MetricRefreshDiscarded, Value: "discarded"},
		},
	},
	{
		Name: "gosession_resolutions_total", Help: "Startup session resolutions by outcome.", LabelKey: "outcome",
		Series: []Series{
			{ID: goSession.MetricSessionRestored, Value: "restored"},
			{ID: goSession.MetricSessionMissing, Value: "missing"},
		},
	},
	{
		Name: "gosession_storage_failures_total", Help: "Credential storage operations that failed and degraded the session.",
		Series: []Series{{ID: goSession.MetricStorageFailure}},
	},
	{
		Name: "gosession_requests_total", Help: "Outbound requests by credential attached.", LabelKey: "auth",
		Series: []Series{
			{ID: goSession.MetricRequestAuthenticated, Value: "bearer"},
			{ID: goSession.MetricRequestUnauthenticated, Value: "passthrough"},
		},
	},
	{
		Name: "gosession_password_resets_total", Help: "Password reset emails requested.",
		Series: []Series{{ID: goSession.MetricPasswordResetRequest}},
	},
	{
		Name: "gosession_password_changes_total", Help: "Password change attempts by result.", LabelKey: "result",
		Series: []Series{
			{ID: goSession.MetricPasswordChangeSuccess, Value: "success"},
			{ID: goSession.MetricPasswordChangeFailure, Value: "failure"},
		},
	},
}

// AuditDropped names the counter fed by Source.AuditDropped rather than the
// snapshot.
var AuditDropped = Family{
	Name: "gosession_audit_dropped_total",
	Help: "Audit events dropped on a full dispatcher buffer.",
}

// Latency names the refresh round-trip histogram.
var Latency = struct {
	ID   goSession.MetricID
	Name string
	Help string
}{
	ID:   goSession.MetricRefreshLatency,
	Name: "gosession_refresh_latency_seconds",
	Help: "Refresh endpoint round-trip latency.",
}

// LatencyBounds are the bucket upper bounds in seconds, matching the client's
// bucketing.
var LatencyBounds = [...]string{"0.025", "0.05", "0.1", "0.25", "0.5", "1", "5", "+Inf"}

// Point is one observed value of a family.
type Point struct {
	LabelValue string
	Value      uint64
}

// Visitor receives the collected values. Counter is called once per family,
// in Families order, then once for AuditDropped; Histogram is called only
// when the latency histogram is enabled, with cumulative bucket counts.
type Visitor interface {
	Counter(f Family, points []Point)
	Histogram(name, help string, cumulative [len(LatencyBounds)]uint64)
}

// Walk reads one snapshot from src and hands it to v. It reports false when
// the client has metrics disabled and nothing was visited.
func Walk(src Source, v Visitor) bool {
	snap := src.MetricsSnapshot()
	dropped := src.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return false
	}

	points := make([]Point, 0, 3)
	for _, f := range Families {
		points = points[:0]
		for _, s := range f.Series {
			points = append(points, Point{LabelValue: s.Value, Value: snap.Counters[s.ID]})
		}
		v.Counter(f, points)
	}
	v.Counter(AuditDropped, []Point{{Value: dropped}})

	if raw, ok := snap.Histograms[Latency.ID]; ok {
		var cumulative [len(LatencyBounds)]uint64
		var running uint64
		for i := range cumulative {
			if i < len(raw) {
				running += raw[i]
			}
			cumulative[i] = running
		}
		v.Histogram(Latency.Name, Latency.Help, cumulative)
	}
	return true
}
