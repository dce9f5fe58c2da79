package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var handleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "chatmod_pipeline_handle_duration_sec",
	Help: "Duration of message handling, including enforcement",
})

var messagesRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_pipeline_messages_rejected",
	Help: "Number of messages rejected during shutdown",
})

var messagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_pipeline_messages_skipped",
	Help: "Number of messages skipped without a moderation decision",
}, []string{"reason"})

var messagesShortCircuited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_pipeline_messages_short_circuited",
	Help: "Number of messages for which further processing was stopped",
}, []string{"action"})

var routeThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_pipeline_route_throttled",
	Help: "Number of command invocations rejected by route rate limits",
}, []string{"route"})

var sweptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_pipeline_swept_entries",
	Help: "Number of idle state entries removed by the sweeper",
}, []string{"kind"})
