package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_operations_total",
			Help: "Total number of lifecycle operations by operation",
		},
		[]string{"operation"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridgeline_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ridgeline_clusters_total",
			Help: "Total number of managed clusters by status",
		},
		[]string{"status"},
	)

	// Validation metrics
	ValidationFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_validation_findings_total",
			Help: "Total number of validation findings by severity",
		},
		[]string{"severity"},
	)

	// Update policy metrics
	UpdateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_update_changes_total",
			Help: "Total number of evaluated update changes by policy and result",
		},
		[]string{"policy", "result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridgeline_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ValidationFindings)
	prometheus.MustRegister(UpdateChangesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
