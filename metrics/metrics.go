/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-21 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\metrics\metrics.go
 * @Description: Prometheus 指标定义与采集
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kamalyes/go-mudhub/bus"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
)

var (
	// 连接指标
	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mudhub_connections_active",
		Help: "The current number of active client connections.",
	}, []string{"transport"})
	OnlinePlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_players_online",
		Help: "The current number of online players.",
	})
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_rooms_active",
		Help: "The current number of rooms with at least one subscriber.",
	})

	// 消息投递指标
	MessagesDelivered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_messages_delivered_total",
		Help: "The total number of messages delivered to client send buffers.",
	})
	MessagesQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_messages_queued_total",
		Help: "The total number of messages queued for unreachable players.",
	})
	MessagesDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_messages_dropped_total",
		Help: "The total number of messages dropped.",
	})
	PendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_pending_queue_depth",
		Help: "The current depth of the pending delivery queues.",
	})

	// 总线指标
	BusPublishTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_publish_total",
		Help: "The total number of bus publish operations.",
	})
	BusPublishErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_publish_errors_total",
		Help: "The total number of terminally failed bus publish operations.",
	})
	BusDeadLettered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_dead_lettered_total",
		Help: "The total number of messages moved to the dead letter queue.",
	})
	BusDLQSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_dlq_size",
		Help: "The current number of pending messages in the dead letter queue.",
	})
	BusCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_circuit_state",
		Help: "The circuit breaker state (0=closed, 1=half_open, 2=open).",
	})
	BusHealthScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudhub_bus_health_score",
		Help: "The decayed broker health score (0-100).",
	})
)

// circuitStateValue 熔断器状态到数值的映射
func circuitStateValue(state models.CircuitState) float64 {
	switch state {
	case models.CircuitStateOpen:
		return 2
	case models.CircuitStateHalfOpen:
		return 1
	default:
		return 0
	}
}

// ObserveHubStats 将Hub统计快照写入Prometheus指标
func ObserveHubStats(stats *models.HubStats) {
	ActiveConnections.WithLabelValues("websocket").Set(float64(stats.WebSocketConnections))
	ActiveConnections.WithLabelValues("sse").Set(float64(stats.SSEConnections))
	OnlinePlayers.Set(float64(stats.OnlinePlayers))
	ActiveRooms.Set(float64(stats.ActiveRooms))
	MessagesDelivered.Set(float64(stats.MessagesSent))
	MessagesQueued.Set(float64(stats.MessagesQueued))
	MessagesDropped.Set(float64(stats.MessagesDropped))
	PendingDepth.Set(float64(stats.PendingDepth))
}

// ObserveBusMetrics 将总线指标快照写入Prometheus指标
func ObserveBusMetrics(snapshot *bus.MetricsSnapshot) {
	BusPublishTotal.Set(float64(snapshot.PublishTotal))
	BusPublishErrors.Set(float64(snapshot.PublishErrors))
	BusDeadLettered.Set(float64(snapshot.DeadLettered))
	BusDLQSize.Set(float64(snapshot.DLQSize))
	BusCircuitState.Set(circuitStateValue(snapshot.CircuitState))
	BusHealthScore.Set(snapshot.HealthScore)
}

// StartServer 启动Prometheus指标HTTP服务
// 返回关闭函数，调用即优雅停止服务
func StartServer(port int, path string, logger middleware.MudLogger) func(context.Context) error {
	if logger == nil {
		logger = middleware.DefaultLogger
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoKV("指标服务启动", "addr", server.Addr, "path", path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorKV("指标服务异常退出", "error", err)
		}
	}()

	return server.Shutdown
}
