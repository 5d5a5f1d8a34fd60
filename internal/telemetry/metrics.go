package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

var (
	// JobsPublished — опубликованные задания доставки по каналам.
	JobsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_published_total",
		Help:      "Delivery jobs published to the broker.",
	}, []string{"channel"})

	// Deliveries — итоги обработки заданий воркером.
	// outcome: delivered, failed, skipped, invalid, deferred.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Delivery job outcomes by channel.",
	}, []string{"channel", "outcome"})

	// DeliveryAttempts — попытки отправки через провайдера.
	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_attempts_total",
		Help:      "Provider send attempts by channel.",
	}, []string{"channel"})

	// BreakerState — состояние circuit breaker: 0 closed, 1 open, 2 half-open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
	}, []string{"service"})

	// UpstreamRequests — вызовы внешних сервисов.
	// result: ok, client_error, server_error, transport_error, rejected.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Upstream service calls by result.",
	}, []string{"service", "result"})

	// HTTPRequests — входящие HTTP запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served by the API.",
	}, []string{"method", "status"})

	// DeadLetters — заархивированные и переотправленные dead-letter сообщения.
	// action: archived, replayed, purged.
	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dead_letters_total",
		Help:      "Dead-letter archive activity.",
	}, []string{"action"})
)
