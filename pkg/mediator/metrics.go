package mediator

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"httpmediator/pkg/httpresult"
)

// Metrics counts calls and observes their duration per contract and status.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the mediator collectors for side with reg.
func NewMetrics(reg prometheus.Registerer, side Side) *Metrics {
	labels := prometheus.Labels{"side": string(side)}
	return &Metrics{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mediator",
			Name:        "requests_total",
			Help:        "Total number of mediator calls by contract and status.",
			ConstLabels: labels,
		}, []string{"method", "uri", "status"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "mediator",
			Name:        "request_duration_seconds",
			Help:        "Time spent in mediator calls.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "uri"}),
	}
}

// Middleware records every call. Canceled calls are counted with status
// "canceled", errors that were not contained with "unhandled".
func (m *Metrics) Middleware(next Handler) Handler {
	return func(ctx context.Context, call *Call) (httpresult.Result[any], error) {
		start := time.Now()
		res, err := next(ctx, call)

		var status string
		switch {
		case IsCancellation(ctx, err):
			status = "canceled"
		case err != nil:
			status = "unhandled"
		default:
			status = strconv.Itoa(res.Status())
		}
		method, uri := string(call.Descriptor.Method), call.Descriptor.URI
		m.requests.WithLabelValues(method, uri, status).Inc()
		m.duration.WithLabelValues(method, uri).Observe(time.Since(start).Seconds())
		return res, err
	}
}
