package keylock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_keylock_timeouts",
	Help: "Number of per-member lock acquisitions which timed out",
})
