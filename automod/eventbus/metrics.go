package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_bus_events_published",
	Help: "Number of events admitted to the bus queue",
}, []string{"type"})

var eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_bus_events_rejected",
	Help: "Number of events rejected by Publish",
}, []string{"reason"})

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_bus_events_dropped",
	Help: "Number of events abandoned when shutdown cancelled delivery",
}, []string{"type"})

var handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_bus_handler_errors",
	Help: "Number of event handler failures and panics",
}, []string{"type"})

var handlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "chatmod_bus_handler_duration_sec",
	Help: "Duration of single event handler invocations",
})

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatmod_bus_queue_depth",
	Help: "Number of events waiting in the bus queue",
})
