/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\types.go
 * @Description: 通用类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"time"
)

// IDGenerator ID生成器接口
// 用于生成连接ID、消息ID等唯一标识符
type IDGenerator interface {
	GenerateTraceID() string
	GenerateSpanID() string
	GenerateRequestID() string
	GenerateCorrelationID() string
}

// PendingMessage 目标暂时不可达时排队的事件
// 以玩家为键排队，短暂断线重连后可以原顺序补投
type PendingMessage struct {
	PlayerID   string    `json:"player_id"`   // 目标玩家ID
	Payload    []byte    `json:"payload"`     // 信封字节
	EnqueuedAt time.Time `json:"enqueued_at"` // 入队时间
}

// HubStats Hub统计信息结构体
type HubStats struct {
	// 连接统计
	TotalConnections     int `json:"total_connections"`     // 总连接数
	WebSocketConnections int `json:"websocket_connections"` // WebSocket连接数
	SSEConnections       int `json:"sse_connections"`       // SSE连接数
	OnlinePlayers        int `json:"online_players"`        // 在线玩家数
	ActiveRooms          int `json:"active_rooms"`          // 有订阅者的房间数

	// 消息统计
	MessagesSent    int64 `json:"messages_sent"`    // 已投递消息数
	MessagesQueued  int64 `json:"messages_queued"`  // 已排队消息数
	MessagesDropped int64 `json:"messages_dropped"` // 已丢弃消息数
	BroadcastsSent  int64 `json:"broadcasts_sent"`  // 已发送房间广播数
	PendingDepth    int   `json:"pending_depth"`    // 待投递队列当前深度

	// 其他统计
	Uptime int64 `json:"uptime"` // 运行时间(秒)
}

// BroadcastResult 房间广播结果
type BroadcastResult struct {
	RoomID    string `json:"room_id"`   // 房间ID
	Total     int    `json:"total"`     // 快照时订阅者总数
	Delivered int    `json:"delivered"` // 投递成功数
	Queued    int    `json:"queued"`    // 排队数
	Dropped   int    `json:"dropped"`   // 丢弃数
}

// NewSessionResult 新会话操作结果
type NewSessionResult struct {
	SessionID    string `json:"session_id"`    // 新会话ID
	Disconnected int    `json:"disconnected"`  // 被强制断开的旧连接数
}

// ReplayResult 死信重放结果
type ReplayResult struct {
	Total     int      `json:"total"`      // 尝试重放总数
	Succeeded int      `json:"succeeded"`  // 成功数
	Failed    int      `json:"failed"`     // 失败数
	FailedIDs []string `json:"failed_ids"` // 失败消息ID列表
}
