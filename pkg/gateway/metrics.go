package gateway

import "github.com/prometheus/client_golang/prometheus"

// operationsTotal counts every completed gateway operation by name and
// outcome, for the host process's /metrics endpoint to expose alongside the
// rest of its Prometheus registry.
var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "operations_total",
		Help:      "Count of gateway operations by name and outcome.",
	},
	[]string{"operation", "outcome"},
)

// queueDepth reports the number of UTXOs currently enqueued per accepted
// deposit value, sampled on every enqueue/dequeue.
var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "utxo_queue_depth",
		Help:      "Number of UTXOs currently queued for a given deposit value.",
	},
	[]string{"value"},
)

func init() {
	prometheus.MustRegister(operationsTotal, queueDepth)
}

func observeOutcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}
