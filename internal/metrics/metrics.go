// Package metrics exposes the portal's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests counts outbound calls to the exam API by path and outcome.
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "backend_requests_total",
		Help:      "Outbound exam API requests by path and outcome.",
	}, []string{"path", "outcome"})

	// TokenRefreshes counts /auth/refresh round trips by trigger.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "token_refreshes_total",
		Help:      "Access token refreshes by trigger (proactive or retry_401).",
	}, []string{"trigger"})

	// AutosaveDeliveries counts autosave queue deliveries by outcome.
	AutosaveDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "autosave_deliveries_total",
		Help:      "Autosave deliveries to the exam API by outcome (ok or retry).",
	}, []string{"outcome"})
)
