package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts routed requests by strategy and response source
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_router_requests_total",
		Help: "Total routed requests by strategy and response source",
	}, []string{"strategy", "source"})

	// BackgroundRefreshes counts image revalidations by outcome
	BackgroundRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_router_background_refreshes_total",
		Help: "Total background image refreshes by result",
	}, []string{"result"})

	// RefreshesInFlight tracks detached refreshes still running
	RefreshesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_router_refreshes_in_flight",
		Help: "Background image refreshes currently running",
	})
)
