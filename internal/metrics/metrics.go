package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "graylogic_dispatch"

var (
	once sync.Once

	DispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Dispatched device messages by outcome and error code",
	}, []string{"outcome", "code"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Device sessions currently held by this node",
	})

	TopicsAttached = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cluster",
		Name:      "topics_attached",
		Help:      "Cluster topics currently holding a backplane subscription",
	})

	TopicEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cluster",
		Name:      "topic_events_total",
		Help:      "Backplane attach and detach events",
	}, []string{"event"})

	GatewayFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "frames_total",
		Help:      "Device frames by direction",
	}, []string{"direction"})

	GatewayDecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "decode_errors_total",
		Help:      "Inbound device frames the protocol codec rejected",
	})
)

// Register registers the collectors into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(DispatchOutcomes)
		prometheus.MustRegister(ActiveSessions)
		prometheus.MustRegister(TopicsAttached)
		prometheus.MustRegister(TopicEvents)
		prometheus.MustRegister(GatewayFrames)
		prometheus.MustRegister(GatewayDecodeErrors)
	})
}
