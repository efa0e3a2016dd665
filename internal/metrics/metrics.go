package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafkalens_remote_operations_total",
		Help: "Remote broker operations by cluster, operation, and result.",
	}, []string{"cluster", "operation", "result"})

	remoteOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafkalens_remote_operation_duration_seconds",
		Help:    "Duration of remote broker operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cluster", "operation"})

	sampledMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafkalens_sampled_messages_total",
		Help: "Messages returned by the sampling engine.",
	}, []string{"cluster"})
)

// ObserveRemoteOperation records one remote call. The result label is "ok"
// for success or the error kind name for failures.
func ObserveRemoteOperation(cluster, operation, result string, elapsed time.Duration) {
	remoteOperations.WithLabelValues(cluster, operation, result).Inc()
	remoteOperationDuration.WithLabelValues(cluster, operation).Observe(elapsed.Seconds())
}

// AddSampledMessages records messages returned by a sampling request.
func AddSampledMessages(cluster string, count int) {
	sampledMessages.WithLabelValues(cluster).Add(float64(count))
}
