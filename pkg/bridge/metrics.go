package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients is the number of open SSE streams on this instance
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_bridge_clients",
		Help: "Number of page clients connected to this instance",
	})

	// MessagesDelivered counts notifications delivered to local clients
	MessagesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_bridge_messages_delivered_total",
		Help: "Total notifications delivered to page clients by type",
	}, []string{"type"})

	// SlowClientsDropped counts clients disconnected for a full buffer
	SlowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_bridge_slow_clients_dropped_total",
		Help: "Total page clients disconnected because their buffer was full",
	})

	// CommandsTotal counts page commands by type and result
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_bridge_commands_total",
		Help: "Total page commands handled by type and result",
	}, []string{"type", "result"})
)
