package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConsumerMetrics counts event consumption outcomes per topic. The async
// side of the platform swallows no failures silently: everything that is
// retried or dead-lettered shows up here.
type ConsumerMetrics struct {
	Processed    *prometheus.CounterVec
	Succeeded    *prometheus.CounterVec
	Retried      *prometheus.CounterVec
	Failed       *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
}

func NewConsumerMetrics(service string) *ConsumerMetrics {
	m := &ConsumerMetrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "events_processed_total",
			Help:      "Total events received from the bus.",
		}, []string{"topic"}),
		Succeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "events_succeeded_total",
			Help:      "Events handled successfully.",
		}, []string{"topic"}),
		Retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "events_retried_total",
			Help:      "Retry attempts for failed handlers.",
		}, []string{"topic"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "events_failed_total",
			Help:      "Events that exhausted retries or failed permanently.",
		}, []string{"topic"}),
		DeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "events_dead_lettered_total",
			Help:      "Events routed to the dead letter topic.",
		}, []string{"topic"}),
	}
	prometheus.MustRegister(m.Processed, m.Succeeded, m.Retried, m.Failed, m.DeadLettered)
	return m
}

// GatewayMetrics counts remote collaborator failures by gateway name.
type GatewayMetrics struct {
	Failures *prometheus.CounterVec
}

func NewGatewayMetrics(service string) *GatewayMetrics {
	m := &GatewayMetrics{
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "gateway_failures_total",
			Help:      "Failed calls to remote service gateways.",
		}, []string{"gateway"}),
	}
	prometheus.MustRegister(m.Failures)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
