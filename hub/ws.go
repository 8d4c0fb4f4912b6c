/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\ws.go
 * @Description: HTTP WebSocket 升级处理与客户端读写协程
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kamalyes/go-mudhub/auth"
	"github.com/kamalyes/go-mudhub/models"
)

// ============================================================================
// WebSocket 升级器配置
// ============================================================================

// ConfigureUpgrader 配置 WebSocket 升级器
func (h *Hub) ConfigureUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // 默认允许所有来源
		},
	}
}

// ============================================================================
// 请求认证
// ============================================================================

// authenticateRequest 从请求中提取并校验令牌
// 优先 Authorization: Bearer 头，其次 token 查询参数；校验失败即拒绝
func (h *Hub) authenticateRequest(r *http.Request) (*auth.TokenClaims, error) {
	tokenString := ""
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	} else {
		tokenString = r.URL.Query().Get("token")
	}
	return h.config.TokenService.Validate(tokenString)
}

// extractClientIP 提取客户端来源IP
// 优先 X-Forwarded-For 首个地址，否则取 RemoteAddr 的主机部分
func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ============================================================================
// HTTP WebSocket 升级处理
// ============================================================================

// HandleWebSocketUpgrade 处理 WebSocket 升级请求
// 此函数负责：认证 -> 升级连接 -> 创建连接实例 -> 注册到 Hub
func (h *Hub) HandleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	// 认证先于升级：无效令牌不消耗升级握手
	claims, err := h.authenticateRequest(r)
	if err != nil {
		h.logger.WithError(err).WarnContextKV(ctx, "[WebSocket] 认证失败",
			"remote_addr", r.RemoteAddr,
			"path", r.URL.Path,
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := h.ConfigureUpgrader()
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).ErrorContextKV(ctx, "[WebSocket] 升级失败",
			"player_id", claims.PlayerID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	conn := models.NewConnection("", claims.PlayerID).
		WithClientIP(extractClientIP(r)).
		WithWebSocketConn(wsConn).
		WithContext(r.Context())

	if err := h.Register(ctx, conn); err != nil {
		h.logger.WithError(err).WarnContextKV(ctx, "[WebSocket] 注册被拒绝",
			"player_id", claims.PlayerID,
			"client_ip", conn.ClientIP,
		)
		_ = wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "registration rejected"),
			time.Now().Add(time.Second))
		_ = wsConn.Close()
		return
	}

	h.logger.InfoContextKV(ctx, "[WebSocket] 连接建立成功",
		"connection_id", conn.ID,
		"player_id", conn.PlayerID,
		"client_ip", conn.ClientIP,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// ============================================================================
// 客户端读写协程
// ============================================================================

// writePump 处理连接消息写入
func (h *Hub) writePump(conn *Connection) {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case payload, ok := <-conn.SendChan:
			if !ok {
				h.logger.DebugKV("连接发送通道关闭", "connection_id", conn.ID)
				return
			}

			if conn.Conn != nil {
				conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					h.logger.WarnKV("连接消息写入失败",
						"connection_id", conn.ID,
						"player_id", conn.PlayerID,
						"error", err,
					)
					h.Unregister(context.Background(), conn.ID, models.DisconnectReasonWriteError)
					return
				}
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// readPump 处理连接消息读取
func (h *Hub) readPump(conn *Connection) {
	h.wg.Add(1)
	defer h.wg.Done()
	defer h.Unregister(context.Background(), conn.ID, models.DisconnectReasonReadError)

	for {
		messageType, data, err := conn.Conn.ReadMessage()
		if err != nil {
			h.logger.DebugKV("连接读取结束",
				"connection_id", conn.ID,
				"player_id", conn.PlayerID,
				"error", err,
			)
			return
		}

		conn.Touch()

		switch messageType {
		case websocket.TextMessage:
			h.handleTextMessage(conn, data)
		case websocket.CloseMessage:
			return
		case websocket.PingMessage:
			_ = conn.Conn.WriteMessage(websocket.PongMessage, nil)
		}
	}
}

// handleTextMessage 处理文本消息
// 心跳类消息就地回应，其余交给消息接收回调处理
func (h *Hub) handleTextMessage(conn *Connection, data []byte) {
	envelope, err := models.DecodeEnvelope(data)
	if err != nil {
		h.logger.DebugKV("无法解析的上行消息",
			"connection_id", conn.ID,
			"size", len(data),
		)
		return
	}

	switch envelope.Type {
	case "ping", "heartbeat":
		conn.TouchHeartbeat()
		h.sendPong(conn)
		return
	}

	if h.messageReceivedCallback != nil {
		if err := h.messageReceivedCallback(context.Background(), conn, envelope); err != nil {
			h.logger.WarnKV("消息接收回调执行失败",
				"connection_id", conn.ID,
				"error", err,
			)
		}
	}
}

// sendPong 回应心跳
func (h *Hub) sendPong(conn *Connection) {
	payload, err := models.NewEnvelope("pong", nil).Encode()
	if err != nil {
		return
	}
	h.trySendToConnection(conn, payload)
}
