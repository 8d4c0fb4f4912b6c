/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\enums.go
 * @Description: 枚举类型定义
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

// ConnectionType 连接类型
type ConnectionType string

const (
	ConnectionTypeWebSocket ConnectionType = "websocket" // WebSocket连接
	ConnectionTypeSSE       ConnectionType = "sse"       // SSE服务器推送连接
)

// String 实现Stringer接口
func (c ConnectionType) String() string {
	return string(c)
}

// IsValid 检查连接类型是否有效
func (c ConnectionType) IsValid() bool {
	switch c {
	case ConnectionTypeWebSocket, ConnectionTypeSSE:
		return true
	default:
		return false
	}
}

// DeliveryStatus 消息投递状态
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered" // 已投递到连接
	DeliveryStatusQueued    DeliveryStatus = "queued"    // 目标暂时不可达，已入待投递队列
	DeliveryStatusDropped   DeliveryStatus = "dropped"   // 已丢弃（队列满或连接已关闭）
)

// String 实现Stringer接口
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid 检查投递状态是否有效
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusQueued, DeliveryStatusDropped:
		return true
	default:
		return false
	}
}

// DisconnectReason 连接断开原因
type DisconnectReason string

const (
	DisconnectReasonReadError        DisconnectReason = "read_error"        // 读取错误
	DisconnectReasonWriteError       DisconnectReason = "write_error"       // 写入错误
	DisconnectReasonHeartbeatTimeout DisconnectReason = "heartbeat_timeout" // 心跳超时
	DisconnectReasonNewSession       DisconnectReason = "new_session"       // 玩家发起新会话，旧连接被强制关闭
	DisconnectReasonClientRequest    DisconnectReason = "client_request"    // 客户端主动断开
	DisconnectReasonServerShutdown   DisconnectReason = "server_shutdown"   // 服务端关闭
	DisconnectReasonUnknown          DisconnectReason = "unknown"           // 未知原因
)

// String 实现Stringer接口
func (r DisconnectReason) String() string {
	return string(r)
}

// IsValid 检查断开原因是否有效
func (r DisconnectReason) IsValid() bool {
	switch r {
	case DisconnectReasonReadError, DisconnectReasonWriteError,
		DisconnectReasonHeartbeatTimeout, DisconnectReasonNewSession,
		DisconnectReasonClientRequest, DisconnectReasonServerShutdown,
		DisconnectReasonUnknown:
		return true
	default:
		return false
	}
}

// CircuitState 熔断器状态
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"    // 关闭：正常放行
	CircuitStateOpen     CircuitState = "open"      // 打开：快速失败
	CircuitStateHalfOpen CircuitState = "half_open" // 半开：放行探测请求
)

// String 实现Stringer接口
func (s CircuitState) String() string {
	return string(s)
}

// IsValid 检查熔断器状态是否有效
func (s CircuitState) IsValid() bool {
	switch s {
	case CircuitStateClosed, CircuitStateOpen, CircuitStateHalfOpen:
		return true
	default:
		return false
	}
}

// DLQStatus 死信消息状态
type DLQStatus string

const (
	DLQStatusPending  DLQStatus = "pending"  // 等待重放
	DLQStatusReplayed DLQStatus = "replayed" // 重放成功
)

// String 实现Stringer接口
func (s DLQStatus) String() string {
	return string(s)
}
