package utils

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RefreshAttempts counts silent refresh attempts by outcome
	// (success, failure, superseded).
	RefreshAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rwandabill",
		Subsystem: "gateway",
		Name:      "refresh_attempts_total",
		Help:      "Silent access-token refresh attempts by outcome.",
	}, []string{"outcome"})

	// GatewayRequests counts requests sent through the gateway by final status class.
	GatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rwandabill",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Requests dispatched through the request gateway by status class.",
	}, []string{"class"})

	// GateDecisions counts access gate decisions.
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rwandabill",
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Access gate decisions by outcome.",
	}, []string{"decision"})
)

func init() {
	prometheus.MustRegister(RefreshAttempts, GatewayRequests, GateDecisions)
}

// StatusClass buckets an HTTP status for metric labels.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
