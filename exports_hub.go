/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-22 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\exports_hub.go
 * @Description: Hub 包的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package mudhub

import (
	"github.com/kamalyes/go-mudhub/hub"
)

// ============================================================================
// Hub 类型导出
// ============================================================================

type (
	Hub                      = hub.Hub
	HubConfig                = hub.Config
	Connection               = hub.Connection
	ConnectCallback          = hub.ConnectCallback
	DisconnectCallback       = hub.DisconnectCallback
	MessageReceivedCallback  = hub.MessageReceivedCallback
	HeartbeatTimeoutCallback = hub.HeartbeatTimeoutCallback
	PendingDropCallback      = hub.PendingDropCallback
)

// ============================================================================
// Hub 函数导出
// ============================================================================

var (
	NewHub           = hub.NewHub
	DefaultHubConfig = hub.DefaultConfig
)

// ============================================================================
// Hub 方法速览 - 通过 Hub 实例调用
// ============================================================================

// 连接注册与管理：
// - Register(ctx context.Context, conn *Connection) error: 注册连接（限流检查先于副作用）
// - Unregister(ctx context.Context, connectionID string, reason DisconnectReason): 注销连接（幂等）
// - HandleWebSocketUpgrade(w http.ResponseWriter, r *http.Request): WebSocket 升级入口
// - HandleSSE(w http.ResponseWriter, r *http.Request): SSE 下行流入口

// 消息发送：
// - Send(ctx, connectionID, payload) DeliveryStatus: 发送到指定连接
// - SendToPlayer(ctx, playerID, payload) DeliveryStatus: 发送到玩家全部连接
// - BroadcastToRoom(ctx, roomID, payload, excludeConnIDs...) *BroadcastResult: 房间广播
// - BroadcastToAll(ctx, payload) int: 全服广播

// 会话管理：
// - StartNewSession(ctx, playerID) *NewSessionResult: 开启新会话并强制下线旧连接
// - GetSession(playerID) (*Session, error) / GetPresence(playerID) *PresenceRecord

// 生命周期：
// - Run() / WaitForStart() / Shutdown(ctx) / GetStats() *HubStats
