/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\pending.go
 * @Description: Hub 待投递消息队列 - 按玩家排队，重连后按序补投
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"time"

	"github.com/kamalyes/go-mudhub/models"
)

// enqueuePending 将消息按玩家排入待投递队列
// 队列有上限，满时挤出最旧的一条（为新消息腾位），被挤出的消息触发丢弃回调
func (h *Hub) enqueuePending(playerID string, payload []byte) DeliveryStatus {
	msg := &models.PendingMessage{
		PlayerID:   playerID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	h.pendingMu.Lock()
	queue := h.pending[playerID]
	var evicted *models.PendingMessage
	if len(queue) >= h.config.PendingPerPlayer {
		evicted = queue[0]
		queue = queue[1:]
	}
	h.pending[playerID] = append(queue, msg)
	h.pendingMu.Unlock()

	if evicted != nil {
		h.messagesDropped.Add(1)
		h.logger.DebugKV("待投递队列已满，挤出最旧消息", "player_id", playerID)
		h.notifyPendingDrop(playerID, evicted)
	} else {
		h.pendingDepth.Add(1)
	}

	return DeliveryStatusQueued
}

// flushPending 连接注册后按序补投该玩家的待投递消息（FIFO）
// 补投失败的消息不再回队，按丢弃处理
func (h *Hub) flushPending(conn *Connection) {
	h.pendingMu.Lock()
	queue := h.pending[conn.PlayerID]
	if len(queue) == 0 {
		h.pendingMu.Unlock()
		return
	}
	delete(h.pending, conn.PlayerID)
	h.pendingMu.Unlock()

	h.pendingDepth.Add(-int64(len(queue)))

	delivered := 0
	for _, msg := range queue {
		if h.trySendToConnection(conn, msg.Payload) == DeliveryStatusDelivered {
			delivered++
		} else {
			h.messagesDropped.Add(1)
			h.notifyPendingDrop(conn.PlayerID, msg)
		}
	}
	h.messagesSent.Add(int64(delivered))

	h.logger.InfoKV("待投递消息补投完成",
		"player_id", conn.PlayerID,
		"conn_id", conn.ID,
		"total", len(queue),
		"delivered", delivered,
	)
}

// sweepPending 清理超过最大存活时长的待投递消息
func (h *Hub) sweepPending() {
	cutoff := time.Now().Add(-h.config.PendingMaxAge)
	var expired []*models.PendingMessage

	h.pendingMu.Lock()
	for playerID, queue := range h.pending {
		idx := 0
		for idx < len(queue) && queue[idx].EnqueuedAt.Before(cutoff) {
			idx++
		}
		if idx == 0 {
			continue
		}
		expired = append(expired, queue[:idx]...)
		if idx == len(queue) {
			delete(h.pending, playerID)
		} else {
			h.pending[playerID] = queue[idx:]
		}
	}
	h.pendingMu.Unlock()

	if len(expired) == 0 {
		return
	}

	h.pendingDepth.Add(-int64(len(expired)))
	h.messagesDropped.Add(int64(len(expired)))
	for _, msg := range expired {
		h.notifyPendingDrop(msg.PlayerID, msg)
	}

	h.logger.InfoKV("清理过期待投递消息", "count", len(expired))
}

// PendingDepth 获取待投递队列当前总深度
func (h *Hub) PendingDepth() int {
	return int(h.pendingDepth.Load())
}

// PendingCountForPlayer 获取指定玩家的待投递消息数
func (h *Hub) PendingCountForPlayer(playerID string) int {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return len(h.pending[playerID])
}

// notifyPendingDrop 触发待投递消息丢弃回调
func (h *Hub) notifyPendingDrop(playerID string, msg *models.PendingMessage) {
	if h.pendingDropCallback == nil {
		return
	}
	h.pendingDropCallback(playerID, msg)
}
