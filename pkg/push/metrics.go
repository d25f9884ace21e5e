package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsShown counts broadcast push notifications.
	NotificationsShown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_push_notifications_total",
			Help: "Total push notifications broadcast to pages",
		},
	)

	// Clicks counts notification clicks by outcome.
	Clicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_push_clicks_total",
			Help: "Total notification clicks by outcome (focus, open, none)",
		},
		[]string{"outcome"},
	)
)
