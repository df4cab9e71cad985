package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RoundsPlayed counts finished quiz rounds by game mode and outcome.
var RoundsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nethz",
	Subsystem: "worldle",
	Name:      "rounds_played_total",
	Help:      "Number of answered quiz rounds, labelled by game mode and outcome.",
}, []string{"mode", "outcome"})

// HTTPRequests counts handled HTTP requests by method, route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nethz",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Number of handled HTTP requests.",
}, []string{"method", "route", "status"})
