/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\connection.go
 * @Description: 连接模型（统一管理 WebSocket 和 SSE 连接）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection 一条到客户端的物理连接
// 一条连接同一时刻只属于一个玩家；健康状态由心跳时效推导
type Connection struct {
	ID             string          `json:"id"`              // 连接ID
	PlayerID       string          `json:"player_id"`       // 所属玩家ID
	SessionID      string          `json:"session_id"`      // 所属会话ID
	ClientIP       string          `json:"client_ip"`       // 来源IP
	NodeID         string          `json:"node_id"`         // 所在节点ID
	ConnectionType ConnectionType  `json:"connection_type"` // 连接类型（websocket/sse）
	ConnectedAt    time.Time       `json:"connected_at"`    // 连接建立时间
	Conn           *websocket.Conn `json:"-"`               // WebSocket连接（不序列化，仅WS使用）
	SendChan       chan []byte     `json:"-"`               // 发送通道（不序列化）
	Context        context.Context `json:"-"`               // 上下文（不序列化）

	// SSE 专用字段（仅当 ConnectionType 为 SSE 时使用）
	SSEWriter  http.ResponseWriter `json:"-"` // SSE Writer（不序列化）
	SSEFlusher http.Flusher        `json:"-"` // SSE Flusher（不序列化）

	// 读泵更新、心跳检查并发读取，用纳秒时间戳原子读写
	lastSeenNano      atomic.Int64 `json:"-"` // 最后活跃时间（不序列化）
	lastHeartbeatNano atomic.Int64 `json:"-"` // 最后心跳时间（不序列化）

	closed  atomic.Bool `json:"-"` // channel关闭标志（不序列化）
	CloseMu sync.Mutex  `json:"-"` // 保护channel关闭的互斥锁（不序列化）
}

// NewConnection 创建新的连接实例
func NewConnection(id, playerID string) *Connection {
	now := time.Now()
	conn := &Connection{
		ID:             id,
		PlayerID:       playerID,
		ConnectionType: ConnectionTypeWebSocket,
		ConnectedAt:    now,
		Context:        context.Background(),
	}
	conn.lastSeenNano.Store(now.UnixNano())
	conn.lastHeartbeatNano.Store(now.UnixNano())
	return conn
}

// WithClientIP 设置来源IP
func (c *Connection) WithClientIP(ip string) *Connection {
	c.ClientIP = ip
	return c
}

// WithSessionID 设置会话ID
func (c *Connection) WithSessionID(sessionID string) *Connection {
	c.SessionID = sessionID
	return c
}

// WithNodeID 设置节点ID
func (c *Connection) WithNodeID(nodeID string) *Connection {
	c.NodeID = nodeID
	return c
}

// WithWebSocketConn 设置WebSocket连接
func (c *Connection) WithWebSocketConn(conn *websocket.Conn) *Connection {
	c.Conn = conn
	c.ConnectionType = ConnectionTypeWebSocket
	return c
}

// WithSSEWriter 设置SSE Writer
func (c *Connection) WithSSEWriter(w http.ResponseWriter, flusher http.Flusher) *Connection {
	c.SSEWriter = w
	c.SSEFlusher = flusher
	c.ConnectionType = ConnectionTypeSSE
	return c
}

// WithSendChan 初始化发送通道
func (c *Connection) WithSendChan(capacity int) *Connection {
	c.SendChan = make(chan []byte, capacity)
	return c
}

// WithContext 设置上下文
func (c *Connection) WithContext(ctx context.Context) *Connection {
	c.Context = ctx
	return c
}

// Touch 更新最后活跃时间
func (c *Connection) Touch() {
	c.lastSeenNano.Store(time.Now().UnixNano())
}

// TouchHeartbeat 更新心跳时间（同时刷新活跃时间）
func (c *Connection) TouchHeartbeat() {
	now := time.Now().UnixNano()
	c.lastHeartbeatNano.Store(now)
	c.lastSeenNano.Store(now)
}

// LastSeen 获取最后活跃时间
func (c *Connection) LastSeen() time.Time {
	nano := c.lastSeenNano.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// LastHeartbeat 获取最后心跳时间
func (c *Connection) LastHeartbeat() time.Time {
	nano := c.lastHeartbeatNano.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// SetLastSeen 设置最后活跃时间
func (c *Connection) SetLastSeen(t time.Time) {
	c.lastSeenNano.Store(t.UnixNano())
}

// SetLastHeartbeat 设置最后心跳时间
func (c *Connection) SetLastHeartbeat(t time.Time) {
	c.lastHeartbeatNano.Store(t.UnixNano())
}

// IsHealthy 检查连接是否健康（心跳在时效窗口内）
func (c *Connection) IsHealthy(timeout time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	return time.Since(c.LastHeartbeat()) <= timeout
}

// IsClosed 检查连接是否已关闭
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close 关闭连接（幂等）
// 关闭发送通道并断开底层传输，重复调用为空操作
func (c *Connection) Close() {
	c.CloseMu.Lock()
	defer c.CloseMu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if c.SendChan != nil {
		close(c.SendChan)
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}
