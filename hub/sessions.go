/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\sessions.go
 * @Description: Hub 会话管理 - 开启新会话并强制下线旧连接
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"

	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// StartNewSession 为玩家开启全新会话（"我要踢掉我自己的其他端"）
// 旧会话立即作废，其全部连接被强制断开；已排队的待投递消息保留，
// 新会话的首条连接注册时照常补投
func (h *Hub) StartNewSession(ctx context.Context, playerID string) *NewSessionResult {
	session, evicted := h.tracker.StartNewSession(ctx, playerID, h.currentEpochValue())

	// 并发断开旧会话的所有连接
	syncx.ParallelForEachSlice(evicted, func(i int, connID string) {
		h.Unregister(ctx, connID, DisconnectReasonNewSession)
	})

	h.logger.InfoKV("新会话已开启",
		"player_id", playerID,
		"session_id", session.ID,
		"disconnected", len(evicted),
	)

	return &NewSessionResult{
		SessionID:    session.ID,
		Disconnected: len(evicted),
	}
}

// GetSession 获取玩家当前会话
func (h *Hub) GetSession(playerID string) (*Session, error) {
	return h.tracker.GetSession(playerID)
}

// GetPresence 获取玩家在线状态记录
func (h *Hub) GetPresence(playerID string) *PresenceRecord {
	return h.tracker.GetPresence(playerID)
}
