package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment lifecycle activity.
type PaymentMetrics struct {
	transitions       *prometheus.CounterVec
	webhookResults    *prometheus.CounterVec
	signatureFailures prometheus.Counter
	gatewayDuration   *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempt_transitions_total",
		Help: "Payment attempt status transitions that won the conditional update.",
	}, []string{"from", "to"})
	webhookResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Verified provider webhook events by outcome and handling result.",
	}, []string{"outcome", "result"})
	signatureFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_webhook_signature_failures_total",
		Help: "Inbound webhooks rejected by signature verification.",
	})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of payment provider calls including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	reg.MustRegister(transitions, webhookResults, signatureFailures, gatewayDuration)
	return &PaymentMetrics{
		transitions:       transitions,
		webhookResults:    webhookResults,
		signatureFailures: signatureFailures,
		gatewayDuration:   gatewayDuration,
	}
}

// IncTransition counts a status change.
func (p *PaymentMetrics) IncTransition(from, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncWebhookResult counts a handled webhook event.
func (p *PaymentMetrics) IncWebhookResult(outcome, result string) {
	if p == nil || p.webhookResults == nil {
		return
	}
	p.webhookResults.WithLabelValues(normalizeLabel(outcome), normalizeLabel(result)).Inc()
}

// IncSignatureFailure counts a rejected webhook signature.
func (p *PaymentMetrics) IncSignatureFailure() {
	if p == nil || p.signatureFailures == nil {
		return
	}
	p.signatureFailures.Inc()
}

// ObserveGatewayCall records the latency of a provider call.
func (p *PaymentMetrics) ObserveGatewayCall(operation string, success bool, duration time.Duration) {
	if p == nil || p.gatewayDuration == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	p.gatewayDuration.WithLabelValues(normalizeLabel(operation), result).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
