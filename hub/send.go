/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\send.go
 * @Description: Hub 消息发送功能
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
)

// ============================================================================
// 基础发送方法
// ============================================================================

// Send 发送信封字节到指定连接
// Delivered: 已写入连接发送缓冲；Queued: 目标短暂不可达，已按玩家排队等待重连补投；
// Dropped: 目标未知（无法定位玩家）或缓冲已满
func (h *Hub) Send(ctx context.Context, connectionID string, payload []byte) DeliveryStatus {
	conn, exists := h.GetConnection(connectionID)
	if !exists {
		h.messagesDropped.Add(1)
		h.logger.DebugKV("发送目标连接不存在，消息丢弃", "conn_id", connectionID)
		return DeliveryStatusDropped
	}

	if conn.IsClosed() {
		// 连接刚断开但尚未注销：按玩家排队，等待重连补投
		status := h.enqueuePending(conn.PlayerID, payload)
		h.countDelivery(status)
		return status
	}

	status := h.trySendToConnection(conn, payload)
	if status == DeliveryStatusDropped {
		h.logger.WarnKV("连接发送缓冲已满，消息丢弃",
			"conn_id", conn.ID,
			"player_id", conn.PlayerID,
		)
	}
	h.countDelivery(status)
	return status
}

// SendToPlayer 发送信封字节到玩家的全部存活连接（多端在线）
// 无任何存活连接时按玩家排队；任意一条连接投递成功即视为Delivered
func (h *Hub) SendToPlayer(ctx context.Context, playerID string, payload []byte) DeliveryStatus {
	conns := h.GetConnectionsByPlayer(playerID)

	delivered := 0
	for _, conn := range conns {
		if conn.IsClosed() {
			continue
		}
		if h.trySendToConnection(conn, payload) == DeliveryStatusDelivered {
			delivered++
		}
	}

	if delivered > 0 {
		h.messagesSent.Add(int64(delivered))
		return DeliveryStatusDelivered
	}

	status := h.enqueuePending(playerID, payload)
	h.countDelivery(status)
	return status
}

// trySendToConnection 非阻塞写入连接发送缓冲
func (h *Hub) trySendToConnection(conn *Connection, payload []byte) (status DeliveryStatus) {
	status = DeliveryStatusDropped
	if conn.IsClosed() {
		return status
	}

	// 关闭与写入之间存在窗口，恢复已关闭通道写入引发的panic
	defer func() { _ = recover() }()

	select {
	case conn.SendChan <- payload:
		status = DeliveryStatusDelivered
	default:
	}
	return status
}

// countDelivery 按投递结果累加统计
func (h *Hub) countDelivery(status DeliveryStatus) {
	switch status {
	case DeliveryStatusDelivered:
		h.messagesSent.Add(1)
	case DeliveryStatusQueued:
		h.messagesQueued.Add(1)
	case DeliveryStatusDropped:
		h.messagesDropped.Add(1)
	}
}
