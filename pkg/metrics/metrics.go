package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for tool execution status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInvalid = "invalid_params"
	StatusUnknown = "unknown_tool"
)

var (
	//nolint:gochecknoglobals // This is how the prometheus magic works.
	// ToolExecutionsTotal Total number of tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_executions_total",
			Help: "Total number of tool executions by name and outcome",
		},
		[]string{"tool", "status"},
	)

	//nolint:gochecknoglobals // This is how the prometheus magic works.
	// ToolDurationSeconds Tool handler execution time.
	ToolDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tool_duration_seconds",
			Help:    "Tool handler execution time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"tool"},
	)

	//nolint:gochecknoglobals // This is how the prometheus magic works.
	// RPCRequestsTotal Total number of JSON-RPC requests by method.
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of JSON-RPC requests by method",
		},
		[]string{"method"},
	)

	//nolint:gochecknoglobals // This is how the prometheus magic works.
	// SessionsOpenedTotal Total number of sessions opened.
	SessionsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_opened_total",
			Help: "Total number of sessions opened",
		},
	)

	//nolint:gochecknoglobals // This is how the prometheus magic works.
	// SessionsActive Current number of live sessions.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Current number of live sessions",
		},
	)
)

//nolint:gochecknoinits // This is how the prometheus magic works.
func init() {
	_ = prometheus.Register(ToolExecutionsTotal)
	_ = prometheus.Register(ToolDurationSeconds)
	_ = prometheus.Register(RPCRequestsTotal)
	_ = prometheus.Register(SessionsOpenedTotal)
	_ = prometheus.Register(SessionsActive)
}
