package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chatmod_platform_api_duration_sec",
	Help:    "Duration of chat platform API calls, including retries",
	Buckets: prometheus.ExponentialBucketsRange(0.005, 20, 12),
}, []string{"method"})

var apiErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_platform_api_errors",
	Help: "Number of failed chat platform API calls",
}, []string{"method", "kind"})
