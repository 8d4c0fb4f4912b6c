/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\sse.go
 * @Description: Hub SSE 下行流支持（与 WebSocket 统一使用 Connection 结构）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kamalyes/go-mudhub/models"
)

// HandleSSE 处理 SSE 下行流请求
// 此函数负责：认证 -> 设置流式响应头 -> 注册连接 -> 阻塞直到连接结束
// SSE 是单向通道，客户端上行（移动、聊天）走独立的HTTP接口
func (h *Hub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := h.authenticateRequest(r)
	if err != nil {
		h.logger.WithError(err).WarnContextKV(ctx, "[SSE] 认证失败",
			"remote_addr", r.RemoteAddr,
			"path", r.URL.Path,
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// 设置 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	conn := models.NewConnection("", claims.PlayerID).
		WithClientIP(extractClientIP(r)).
		WithSSEWriter(w, flusher).
		WithContext(ctx)

	if err := h.Register(ctx, conn); err != nil {
		h.logger.WithError(err).WarnContextKV(ctx, "[SSE] 注册被拒绝",
			"player_id", claims.PlayerID,
			"client_ip", conn.ClientIP,
		)
		http.Error(w, "registration rejected", http.StatusTooManyRequests)
		return
	}

	h.logger.InfoContextKV(ctx, "[SSE] 连接建立成功",
		"connection_id", conn.ID,
		"player_id", conn.PlayerID,
		"client_ip", conn.ClientIP,
	)

	// SSE 处理器必须保持阻塞，否则响应体被关闭
	h.waitSSEClosed(conn, r)
}

// ssePump 处理 SSE 连接的下行推送与保活
// 对 ResponseWriter 的全部写入集中在本协程，避免并发写
func (h *Hub) ssePump(conn *Connection) {
	h.wg.Add(1)
	defer h.wg.Done()

	heartbeatTicker := time.NewTicker(h.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case payload, ok := <-conn.SendChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(conn.SSEWriter, "data: %s\n\n", payload); err != nil {
				h.logger.WarnKV("SSE消息写入失败",
					"connection_id", conn.ID,
					"player_id", conn.PlayerID,
					"error", err,
				)
				h.Unregister(h.ctx, conn.ID, models.DisconnectReasonWriteError)
				return
			}
			conn.SSEFlusher.Flush()
			conn.Touch()
		case <-heartbeatTicker.C:
			// 周期性注释行兼作保活探测，写失败说明对端已断开
			if _, err := fmt.Fprint(conn.SSEWriter, ": keepalive\n\n"); err != nil {
				h.Unregister(h.ctx, conn.ID, models.DisconnectReasonWriteError)
				return
			}
			conn.SSEFlusher.Flush()
			conn.TouchHeartbeat()
		case <-h.ctx.Done():
			return
		}
	}
}

// waitSSEClosed 阻塞等待 SSE 连接结束
// 请求上下文取消（客户端断开）即注销连接
func (h *Hub) waitSSEClosed(conn *Connection, r *http.Request) {
	select {
	case <-r.Context().Done():
		h.Unregister(h.ctx, conn.ID, models.DisconnectReasonClientRequest)
	case <-h.ctx.Done():
	}
}
