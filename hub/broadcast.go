/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\broadcast.go
 * @Description: Hub 房间/全服广播功能
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"sync/atomic"

	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// ============================================================================
// 房间广播
// ============================================================================

// BroadcastToRoom 广播信封字节给房间的所有订阅连接
// 订阅者集合在调用时刻快照：广播过程中进出房间的连接不影响本次受众；
// 单个连接投递失败不影响其他订阅者，每个快照内连接恰好收到一次
func (h *Hub) BroadcastToRoom(ctx context.Context, roomID string, payload []byte, excludeConnIDs ...string) *BroadcastResult {
	subscribers := h.rooms.GetSubscribers(roomID)

	excludeMap := make(map[string]bool, len(excludeConnIDs))
	for _, connID := range excludeConnIDs {
		excludeMap[connID] = true
	}

	targets := make([]string, 0, len(subscribers))
	for _, connID := range subscribers {
		if !excludeMap[connID] {
			targets = append(targets, connID)
		}
	}

	result := &BroadcastResult{
		RoomID: roomID,
		Total:  len(targets),
	}

	var delivered, queued, dropped atomic.Int64
	syncx.ParallelForEachSlice(targets, func(i int, connID string) {
		switch h.Send(ctx, connID, payload) {
		case DeliveryStatusDelivered:
			delivered.Add(1)
		case DeliveryStatusQueued:
			queued.Add(1)
		default:
			dropped.Add(1)
		}
	})

	result.Delivered = int(delivered.Load())
	result.Queued = int(queued.Load())
	result.Dropped = int(dropped.Load())

	h.broadcastsSent.Add(1)
	h.logger.DebugKV("房间广播完成",
		"room_id", roomID,
		"total", result.Total,
		"delivered", result.Delivered,
		"queued", result.Queued,
		"dropped", result.Dropped,
	)

	return result
}

// ============================================================================
// 全服广播
// ============================================================================

// BroadcastToAll 广播信封字节给当前节点的全部连接（系统范围事件）
// 返回投递成功的连接数
func (h *Hub) BroadcastToAll(ctx context.Context, payload []byte) int {
	conns := h.GetConnectionsCopy()

	var delivered atomic.Int64
	syncx.ParallelForEachSlice(conns, func(i int, conn *Connection) {
		if h.trySendToConnection(conn, payload) == DeliveryStatusDelivered {
			delivered.Add(1)
		}
	})

	h.broadcastsSent.Add(1)
	h.messagesSent.Add(delivered.Load())
	return int(delivered.Load())
}
