package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	adminauth "github.com/mtp-sa/adminauth"
)

type metricsSource interface {
	MetricsSnapshot() adminauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   adminauth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{adminauth.MetricLoginSuccess, "adminauth_login_success_total", "Successful login attempts."},
	{adminauth.MetricLoginFailure, "adminauth_login_failure_total", "Failed login attempts."},
	{adminauth.MetricLoginRateLimited, "adminauth_login_rate_limited_total", "Rate-limited login attempts."},
	{adminauth.MetricSessionCreated, "adminauth_session_created_total", "Created sessions."},
	{adminauth.MetricSessionInvalidated, "adminauth_session_invalidated_total", "Invalidated sessions."},
	{adminauth.MetricValidateSuccess, "adminauth_validate_success_total", "Requests that passed full session validation."},
	{adminauth.MetricValidateRejected, "adminauth_validate_rejected_total", "Requests rejected during session validation."},
	{adminauth.MetricLogout, "adminauth_logout_total", "Single-session logout operations."},
	{adminauth.MetricLogoutAll, "adminauth_logout_all_total", "Logout-all operations."},
	{adminauth.MetricPasswordChangeSuccess, "adminauth_password_change_success_total", "Successful password changes."},
	{adminauth.MetricPasswordChangeInvalidOld, "adminauth_password_change_invalid_old_total", "Password change attempts with an invalid current password."},
	{adminauth.MetricPasswordChangeReuseRejected, "adminauth_password_change_reuse_rejected_total", "Password change attempts rejected for reuse."},
	{adminauth.MetricStoreFailure, "adminauth_store_failure_total", "Operations that failed on a backing store outage."},
}

var histogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// Exporter renders engine metrics in Prometheus text exposition format. The
// engine keeps plain atomic counters, so there is no client library
// registry; the exporter walks a snapshot and prints it.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an [Exporter] reading from the given engine.
func NewExporter(engine *adminauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an [Exporter] from any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler serving the /metrics endpoint.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render produces the full text exposition.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}

	if raw, ok := snapshot.Histograms[adminauth.MetricValidateLatency]; ok {
		writeHistogram(
			&b,
			"adminauth_validate_latency_seconds",
			"Session validation latency histogram.",
			cumulativeBuckets(raw),
		)
	}

	writeCounter(&b, "adminauth_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" histogram\n")

	for i, le := range histogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	count := cumulative[len(cumulative)-1]
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// Sum is not tracked in snapshots; keep a stable field for scrapers.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func cumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(out); i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
