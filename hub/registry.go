/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\registry.go
 * @Description: Hub 连接注册/注销管理
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/kamalyes/go-mudhub/models"
)

// ============================================================================
// 连接注册/注销
// ============================================================================

// Register 注册连接
// 限流检查先于一切副作用：超限时直接拒绝，不登记连接、不触发在线状态变化；
// 同一玩家的第二条连接附加到现有会话，不会挤掉旧连接
func (h *Hub) Register(ctx context.Context, conn *Connection) error {
	if h.shutdown.Load() {
		return errorx.NewError(models.ErrTypeConnectionClosed)
	}

	if h.config.RateLimiter != nil {
		if err := h.config.RateLimiter.Allow(ctx, conn.ClientIP); err != nil {
			h.logger.WarnKV("连接注册被限流",
				"client_ip", conn.ClientIP,
				"player_id", conn.PlayerID,
			)
			return err
		}
	}

	// 初始化连接标识与时间戳
	now := time.Now()
	conn.ID = mathx.IfEmpty(conn.ID, h.idGenerator.GenerateRequestID())
	conn.NodeID = h.nodeID
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = now
	}
	if conn.LastHeartbeat().IsZero() {
		conn.SetLastHeartbeat(now)
	}
	if conn.LastSeen().IsZero() {
		conn.SetLastSeen(now)
	}
	if conn.SendChan == nil {
		conn.WithSendChan(h.config.SendBufferSize)
	}

	h.mutex.Lock()
	h.connections[conn.ID] = conn
	if _, exists := h.playerConns[conn.PlayerID]; !exists {
		h.playerConns[conn.PlayerID] = make(map[string]*Connection)
	}
	h.playerConns[conn.PlayerID][conn.ID] = conn

	if conn.ConnectionType == ConnectionTypeSSE {
		h.sseConnCount.Add(1)
	} else {
		h.wsConnCount.Add(1)
	}
	total := len(h.connections)
	h.mutex.Unlock()

	// 登记到在线跟踪器（附加或创建会话）
	session := h.tracker.OnConnect(ctx, conn, h.currentEpochValue())

	h.logger.InfoKV("连接注册成功",
		"conn_id", conn.ID,
		"player_id", conn.PlayerID,
		"session_id", session.ID,
		"connection_type", conn.ConnectionType.String(),
		"client_ip", conn.ClientIP,
		"total_connections", total,
	)

	if h.connectCallback != nil {
		if err := h.connectCallback(ctx, conn); err != nil {
			h.logger.ErrorKV("连接回调执行失败",
				"conn_id", conn.ID,
				"player_id", conn.PlayerID,
				"error", err,
			)
		}
	}

	// 启动读写协程（仅持有真实传输的连接需要）
	if conn.Conn != nil {
		go h.writePump(conn)
		go h.readPump(conn)
	} else if conn.ConnectionType == ConnectionTypeSSE && conn.SSEWriter != nil {
		go h.ssePump(conn)
	}

	// 补投该玩家排队中的消息（FIFO）
	h.flushPending(conn)

	return nil
}

// Unregister 注销连接（幂等）
// 未知连接ID为空操作，重复注销不会二次递减在线计数
func (h *Hub) Unregister(ctx context.Context, connectionID string, reason DisconnectReason) {
	h.mutex.Lock()
	conn, exists := h.connections[connectionID]
	if !exists {
		h.mutex.Unlock()
		return
	}
	h.removeConnectionLocked(conn)
	h.mutex.Unlock()

	// 退订房间、注销在线状态
	h.rooms.RemoveConnection(connectionID)
	h.tracker.OnDisconnect(ctx, connectionID, reason)

	conn.Close()

	h.logger.InfoKV("连接已注销",
		"conn_id", connectionID,
		"player_id", conn.PlayerID,
		"reason", reason.String(),
	)

	if h.disconnectCallback != nil {
		syncx.Go(h.ctx).
			OnPanic(func(r interface{}) {
				h.logger.ErrorKV("断开回调panic", "conn_id", connectionID, "panic", r)
			}).
			Exec(func() {
				h.disconnectCallback(ctx, conn, reason)
			})
	}
}

// removeConnectionLocked 从内存映射中移除连接，调用方必须持有写锁
func (h *Hub) removeConnectionLocked(conn *Connection) {
	delete(h.connections, conn.ID)

	if conn.ConnectionType == ConnectionTypeSSE {
		h.sseConnCount.Add(-1)
	} else {
		h.wsConnCount.Add(-1)
	}

	if connMap, exists := h.playerConns[conn.PlayerID]; exists {
		delete(connMap, conn.ID)
		if len(connMap) == 0 {
			delete(h.playerConns, conn.PlayerID)
		}
	}
}

// currentEpochValue 获取当前认证纪元值（守卫未配置或未初始化时为空串）
func (h *Hub) currentEpochValue() string {
	if h.config.EpochGuard == nil {
		return ""
	}
	epoch, err := h.config.EpochGuard.Current()
	if err != nil {
		return ""
	}
	return epoch.Value
}

// ============================================================================
// 连接查询方法
// ============================================================================

// GetConnection 获取连接（带锁，返回是否存在）
func (h *Hub) GetConnection(connectionID string) (*Connection, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	conn, exists := h.connections[connectionID]
	return conn, exists
}

// GetConnectionsByPlayer 获取玩家的所有连接副本
func (h *Hub) GetConnectionsByPlayer(playerID string) []*Connection {
	return syncx.WithRLockReturnValue(&h.mutex, func() []*Connection {
		connMap, exists := h.playerConns[playerID]
		if !exists {
			return nil
		}
		return copyConnectionsFromMap(connMap)
	})
}

// GetConnectionsCopy 获取所有连接的副本
func (h *Hub) GetConnectionsCopy() []*Connection {
	return syncx.WithRLockReturnValue(&h.mutex, func() []*Connection {
		return copyConnectionsFromMap(h.connections)
	})
}

// ConnectionCount 获取当前连接总数
func (h *Hub) ConnectionCount() int {
	return int(h.wsConnCount.Load() + h.sseConnCount.Load())
}

// copyConnectionsFromMap 从连接映射中复制连接列表
// 用于避免在遍历时map被修改导致的数据竞争
func copyConnectionsFromMap(connMap map[string]*Connection) []*Connection {
	conns := make([]*Connection, 0, len(connMap))
	for _, conn := range connMap {
		conns = append(conns, conn)
	}
	return conns
}
