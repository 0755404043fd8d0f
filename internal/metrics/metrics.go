package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})

	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Persisted chat messages by channel",
	}, []string{"channel"})

	Emissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_room_emissions_total",
		Help: "Room emissions by result",
	}, []string{"result"})

	DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_frames_total",
		Help: "Frames dropped because a client send buffer was full",
	})

	RelayFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_relay_frames_total",
		Help: "Frames relayed to other instances by result",
	}, []string{"result"})

	PushTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_tokens_total",
		Help: "Per-token push outcomes",
	}, []string{"outcome"})

	PushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_errors_total",
		Help: "Push jobs that failed as a whole",
	})

	PrunedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_pruned_tokens_total",
		Help: "Invalid device tokens removed from the registry",
	})

	PushQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_queue_dropped_total",
		Help: "Push jobs rejected because the queue was full",
	})

	DomainEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_total",
		Help: "Consumed domain events by type and result",
	}, []string{"type", "result"})
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(Connections, MessagesSent, Emissions, DroppedFrames, RelayFrames,
			PushTokens, PushErrors, PrunedTokens, PushQueueDropped, DomainEvents)
	})
}

// Handler exposes the default registry for scraping.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
