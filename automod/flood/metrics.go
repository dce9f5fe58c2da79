package flood

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var floodStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_flood_store_errors",
	Help: "Number of rate window store failures during flood checks",
})
