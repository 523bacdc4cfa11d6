package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_dispatch_total", Help: "Dispatch attempts by terminal status and failing stage"},
		[]string{"channel", "status", "stage"},
	)
	LedgerFinalizeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "outbound_ledger_finalize_errors_total", Help: "Finalize calls that did not persist"},
	)
	StalePending = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "outbound_ledger_stale_pending", Help: "Messages pending longer than the stale threshold at last sweep"},
	)
	TransportSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_transport_send_total", Help: "Provider send outcomes"},
		[]string{"provider", "result", "http_status"},
	)
	TransportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "outbound_transport_send_latency_seconds", Help: "Provider send latency"},
		[]string{"provider"},
	)
	FanoutRecipients = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbound_fanout_recipients",
			Help:    "Recipients per fan-out",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
	FanoutResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_fanout_results_total", Help: "Per-recipient fan-out results"},
		[]string{"channel", "result"},
	)
	DeferredEnqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outbound_deferred_enqueue_total", Help: "SQS enqueue results for deferred sends"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Dispatches, LedgerFinalizeErrors, StalePending, TransportSend, TransportLatency,
		FanoutRecipients, FanoutResults, DeferredEnqueues)
}
