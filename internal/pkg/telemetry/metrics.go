package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricPresenceAge    = "presence.entry_age_seconds"
	MetricStatusLatency  = "presence.status_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricCheckIns = "business.checkins_confirmed"
	MetricPrunes   = "business.stale_entries_pruned"
)
