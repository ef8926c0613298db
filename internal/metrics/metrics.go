// Package metrics exposes chat engine activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/livechat/internal/chat"
)

const namespace = "livechat"

// Recorder implements chat.Observer on top of a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry
	online   prometheus.Gauge
	messages prometheus.Counter
	dropped  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var _ chat.Observer = (*Recorder)(nil)

// New registers the chat collectors together with the Go runtime and process
// collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "Number of joined chat sessions.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages accepted into the history.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Outbound events that hit a full session queue, by event.",
		}, []string{"event"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections refused during authentication, by reason.",
		}, []string{"reason"}),
	}
	r.registry.MustRegister(
		r.online, r.messages, r.dropped, r.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) OnlineChanged(count int) {
	r.online.Set(float64(count))
}

func (r *Recorder) MessageStored(chat.Message) {
	r.messages.Inc()
}

func (r *Recorder) EventDropped(kind chat.EventKind) {
	r.dropped.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) ConnectionRejected(err error) {
	r.rejected.WithLabelValues(rejectReason(err)).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, chat.ErrInvalidToken):
		return "invalid_token"
	default:
		return "other"
	}
}
