package enforce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_actions_applied",
	Help: "Number of moderation actions applied, by action and success",
}, []string{"action", "ok"})

var platformErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_platform_errors",
	Help: "Number of failed chat platform calls, by operation",
}, []string{"op"})
