package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "chatmod_evaluate_duration_sec",
	Help: "Duration of moderation evaluation per message",
})

var evaluateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_evaluated_messages",
	Help: "Number of messages evaluated, by resulting action",
}, []string{"action"})

var evaluateErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_evaluate_errors",
	Help: "Number of degraded or failed evaluation steps",
}, []string{"step"})
