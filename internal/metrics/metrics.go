package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"makosite/internal/apperr"
)

var (
	queueDepthDesc = prometheus.NewDesc(
		"mako_contact_queue_depth",
		"Number of contact messages waiting in the local fallback queue",
		nil,
		nil,
	)

	linkMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_link_mutations_total",
		Help: "Link directory mutations by operation and outcome",
	}, []string{"op", "outcome"})

	contactSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_contact_submissions_total",
		Help: "Contact form submissions by outcome",
	}, []string{"outcome"})

	endpointUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mako_contact_endpoint_up",
		Help: "1 if the last contact endpoint probe succeeded, 0 otherwise",
	})
)

// QueueCounter is implemented by the contact queue.
type QueueCounter interface {
	CountQueued(ctx context.Context) (int, error)
}

// QueueCollector is a custom Prometheus collector that reads the fallback
// queue length from durable storage on each scrape.
type QueueCollector struct {
	queue QueueCounter
}

// Describe sends the metric descriptor to the channel.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueDepthDesc
}

// Collect reads the queue and emits its length as a gauge.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := c.queue.CountQueued(ctx)
	if err != nil {
		zap.L().Error("failed to collect contact queue depth", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(n))
}

var (
	registered atomic.Bool
	initOnce   sync.Once
)

// Init registers all collectors with the default registry.
// Must be called once at startup; recording before Init is a no-op.
func Init(queue QueueCounter) {
	initOnce.Do(func() {
		prometheus.MustRegister(linkMutations, contactSubmissions, endpointUp)
		if queue != nil {
			prometheus.MustRegister(&QueueCollector{queue: queue})
		}
		registered.Store(true)
	})
}

// Outcome maps an error to a short metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrInvalid):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrRemoteRejected):
		return "rejected"
	case errors.Is(err, apperr.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

// RecordLinkMutation counts a directory mutation.
func RecordLinkMutation(op string, err error) {
	if !registered.Load() {
		return
	}
	linkMutations.WithLabelValues(op, Outcome(err)).Inc()
}

// RecordContactSubmission counts a contact submission. outcome is one of
// "delivered", "queued", "lost" or "invalid".
func RecordContactSubmission(outcome string) {
	if !registered.Load() {
		return
	}
	contactSubmissions.WithLabelValues(outcome).Inc()
}

// SetEndpointUp records the result of the latest contact endpoint probe.
func SetEndpointUp(up bool) {
	if !registered.Load() {
		return
	}
	if up {
		endpointUp.Set(1)
	} else {
		endpointUp.Set(0)
	}
}
