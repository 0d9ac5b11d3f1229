package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mollie_gateway"

// HistogramBuckets are latency buckets in milliseconds.
var HistogramBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1250, 1500, 1750, 2000,
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
	20000, 30000, 60000,
}

var (
	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook deliveries by source, interpreted event and response status.",
	}, []string{"source", "event", "code"})

	mollieRequestDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mollie",
		Name:      "request_dur_ms",
		Help:      "Latency of Mollie API calls in milliseconds.",
		Buckets:   HistogramBuckets,
	}, []string{"method", "code"})

	gatewayActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "actions_total",
		Help:      "Dashboard refunds and subscription cancellations by outcome.",
	}, []string{"action", "outcome"})
)

// RecordWebhookEvent counts one processed webhook delivery.
func RecordWebhookEvent(source, event string, status int) {
	if event == "" {
		event = "invalid"
	}
	webhookEvents.WithLabelValues(source, event, strconv.Itoa(status)).Inc()
}

// ObserveMollieRequest records one Mollie API call. code is 0 on transport errors.
func ObserveMollieRequest(method string, code int, elapsed time.Duration) {
	mollieRequestDur.WithLabelValues(method, strconv.Itoa(code)).Observe(float64(elapsed) / float64(time.Millisecond))
}

func RecordGatewayAction(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayActions.WithLabelValues(action, outcome).Inc()
}

// MillisecondsSince returns the elapsed time since start in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
