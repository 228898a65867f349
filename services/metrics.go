package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages stored",
		},
		[]string{"status"},
	)

	chatDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Live deliveries to connected users",
		},
		[]string{"result"},
	)

	chatOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users with a live connection on this node",
		},
	)

	chatPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_purged_total",
			Help: "Total number of expired messages removed by cleanup",
		},
	)

	chatCleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cleanup_runs_total",
			Help: "Cleanup sweeps by outcome",
		},
		[]string{"outcome"},
	)
)
