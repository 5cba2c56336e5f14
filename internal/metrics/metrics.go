// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus counters for the authentication hot
// path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AuthChecks and WSConnections.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "store_unavailable"
)

var (
	// AuthChecks counts bearer authentication checks by outcome.
	AuthChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubauth_auth_checks_total",
		Help: "Bearer token authentication checks by outcome.",
	}, []string{"outcome"})

	// WSConnections counts WebSocket connection attempts by outcome.
	WSConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubauth_websocket_connections_total",
		Help: "WebSocket connection attempts by outcome.",
	}, []string{"outcome"})
)
