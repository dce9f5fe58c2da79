package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_messages_received",
	Help: "Number of messages received on the ingest API",
})

var messagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_messages_failed",
	Help: "Number of ingested messages which could not be moderated",
}, []string{"reason"})

var adminRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_admin_requests",
	Help: "Number of administrative operations performed",
}, []string{"op"})
