// Package telemetry exposes the application's Prometheus collectors.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the rest of the application reports into.
type Recorder interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
	TransactionsCreated(n int)
	TransactionDeleted()
	ReportGenerated(outcome string)
	EmailDelivery(outcome string)
	EmailQueueDepth(n int)
	WebhookDelivery(outcome string)
	NotificationFired(kind string)
	CircuitBreakerState(service string, state int32)
}

// Outcome labels shared by delivery metrics.
const (
	OutcomeSent    = "sent"
	OutcomeQueued  = "queued"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"

	// OutcomeGenerated labels successful report renders.
	OutcomeGenerated = "generated"
)

type PrometheusRecorder struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	transactionsCreated prometheus.Counter
	transactionsDeleted prometheus.Counter
	reportsGenerated    *prometheus.CounterVec
	emailDeliveries     *prometheus.CounterVec
	emailQueueDepth     prometheus.Gauge
	webhookDeliveries   *prometheus.CounterVec
	notificationsFired  *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
}

// NewPrometheusRecorder registers every collector on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meufin_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meufin_http_request_duration_milliseconds",
				Help:    "HTTP request duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"route"},
		),
		transactionsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "meufin_transactions_created_total",
				Help: "Total number of transaction records created",
			},
		),
		transactionsDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "meufin_transactions_deleted_total",
				Help: "Total number of transaction records deleted",
			},
		),
		reportsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meufin_reports_generated_total",
				Help: "Total number of PDF reports generated by outcome",
			},
			[]string{"outcome"},
		),
		emailDeliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meufin_email_deliveries_total",
				Help: "Total number of report email attempts by outcome",
			},
			[]string{"outcome"},
		),
		emailQueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "meufin_email_queue_depth",
				Help: "Number of emails waiting in the retry queue",
			},
		),
		webhookDeliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meufin_webhook_deliveries_total",
				Help: "Total number of messaging webhook calls by outcome",
			},
			[]string{"outcome"},
		),
		notificationsFired: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meufin_notifications_fired_total",
				Help: "Total number of notifications delivered by kind",
			},
			[]string{"kind"},
		),
		circuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meufin_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
	}
}

func (p *PrometheusRecorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(route).Observe(float64(elapsed.Microseconds()) / 1000)
}

func (p *PrometheusRecorder) TransactionsCreated(n int) { p.transactionsCreated.Add(float64(n)) }
func (p *PrometheusRecorder) TransactionDeleted()       { p.transactionsDeleted.Inc() }

func (p *PrometheusRecorder) ReportGenerated(outcome string) {
	p.reportsGenerated.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) EmailDelivery(outcome string) {
	p.emailDeliveries.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) EmailQueueDepth(n int) { p.emailQueueDepth.Set(float64(n)) }

func (p *PrometheusRecorder) WebhookDelivery(outcome string) {
	p.webhookDeliveries.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) NotificationFired(kind string) {
	p.notificationsFired.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) CircuitBreakerState(service string, state int32) {
	p.circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveHTTP(string, string, int, time.Duration) {}
func (Nop) TransactionsCreated(int)                        {}
func (Nop) TransactionDeleted()                            {}
func (Nop) ReportGenerated(string)                         {}
func (Nop) EmailDelivery(string)                           {}
func (Nop) EmailQueueDepth(int)                            {}
func (Nop) WebhookDelivery(string)                         {}
func (Nop) NotificationFired(string)                       {}
func (Nop) CircuitBreakerState(string, int32)              {}
