/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\lifecycle.go
 * @Description: Hub 生命周期管理
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/kamalyes/go-mudhub/models"
)

// Run 启动Hub（阻塞，直到Shutdown被调用）
// 事件循环托管心跳检查与待投递过期清理两个定时任务
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	if h.started.CompareAndSwap(false, true) {
		h.logger.InfoKV("Hub启动",
			"node_id", h.nodeID,
			"heartbeat_interval", h.config.HeartbeatInterval.String(),
			"client_timeout", h.config.ClientTimeout.String(),
			"pending_per_player", h.config.PendingPerPlayer,
		)
		close(h.startCh)
	}

	syncx.NewEventLoop(h.ctx).
		// 心跳检查定时器：定期检查连接心跳，清理超时连接
		OnTicker(h.config.HeartbeatInterval, h.checkHeartbeat).
		// 待投递过期清理定时器
		OnTicker(h.config.PendingSweepInterval, h.sweepPending).
		// Panic处理：捕获事件处理过程中的panic，防止整个Hub崩溃
		OnPanic(func(r interface{}) {
			h.logger.ErrorKV("Hub事件循环panic", "panic", r, "node_id", h.nodeID)
		}).
		OnShutdown(func() {
			h.logger.InfoKV("Hub事件循环已停止", "node_id", h.nodeID)
		}).
		Run()
}

// WaitForStart 等待Hub启动完成
func (h *Hub) WaitForStart() {
	<-h.startCh
}

// Shutdown 安全关闭Hub：注销全部连接后停止事件循环（幂等）
func (h *Hub) Shutdown(ctx context.Context) {
	if !h.shutdown.CompareAndSwap(false, true) {
		return
	}

	h.logger.InfoKV("Hub开始关闭", "node_id", h.nodeID, "connections", h.ConnectionCount())

	conns := h.GetConnectionsCopy()
	syncx.ParallelForEachSlice(conns, func(i int, conn *Connection) {
		h.Unregister(ctx, conn.ID, DisconnectReasonServerShutdown)
	})

	h.cancel()
	if h.config.RateLimiter != nil {
		h.config.RateLimiter.Stop()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.InfoKV("Hub关闭完成", "node_id", h.nodeID)
	case <-time.After(10 * time.Second):
		h.logger.WarnKV("Hub关闭等待超时", "node_id", h.nodeID)
	case <-ctx.Done():
		h.logger.WarnKV("Hub关闭被上下文取消", "node_id", h.nodeID)
	}
}

// GetStats 获取Hub统计信息快照
func (h *Hub) GetStats() *models.HubStats {
	ws := int(h.wsConnCount.Load())
	sse := int(h.sseConnCount.Load())

	return &models.HubStats{
		TotalConnections:     ws + sse,
		WebSocketConnections: ws,
		SSEConnections:       sse,
		OnlinePlayers:        h.tracker.OnlineCount(),
		ActiveRooms:          h.rooms.RoomCount(),
		MessagesSent:         h.messagesSent.Load(),
		MessagesQueued:       h.messagesQueued.Load(),
		MessagesDropped:      h.messagesDropped.Load(),
		BroadcastsSent:       h.broadcastsSent.Load(),
		PendingDepth:         h.PendingDepth(),
		Uptime:               int64(time.Since(h.startTime).Seconds()),
	}
}
