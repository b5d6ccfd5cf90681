package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_bus_events_emitted_total",
		Help: "Events emitted on owner channels",
	}, []string{"collection", "kind"})

	handlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_bus_handler_failures_total",
		Help: "Subscriber callbacks that panicked during delivery",
	}, []string{"collection"})
)

func countEmitted(channel string, kind Kind) {
	collection, _, _ := SplitChannel(channel)
	eventsEmitted.WithLabelValues(collection, string(kind)).Inc()
}

func countFailure(channel string) {
	collection, _, _ := SplitChannel(channel)
	handlerFailures.WithLabelValues(collection).Inc()
}
