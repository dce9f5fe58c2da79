package escalation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var escalationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_escalation_verdicts",
	Help: "Number of verdicts issued by the escalation policy, by action and cause",
}, []string{"action", "cause"})
