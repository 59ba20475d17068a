package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Messages         *prometheus.CounterVec
	Indicators       *prometheus.CounterVec
	FinalReports     prometheus.Counter
	CallbackOutcomes *prometheus.CounterVec
	StreamClients    prometheus.Gauge
	HandleLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound scammer messages by reply category.",
		}, []string{"category"}),
		Indicators: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicators_total",
			Help:      "Indicators carried on final reports, by kind.",
		}, []string{"kind"}),
		FinalReports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_reports_total",
			Help:      "Final intelligence reports produced.",
		}),
		CallbackOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_outcomes_total",
			Help:      "Final-report callback deliveries by outcome.",
		}, []string{"outcome"}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected live event-stream clients.",
		}),
		HandleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handle_latency_ms",
			Help:      "Honeypot request handling latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) ObserveHandleLatency(d time.Duration) {
	m.HandleLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
