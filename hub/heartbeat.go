/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\heartbeat.go
 * @Description: Hub 心跳检查 - 清理超时连接
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"time"
)

// checkHeartbeat 检查全部连接的心跳时效
// 超过ClientTimeout未收到心跳的连接强制断开
func (h *Hub) checkHeartbeat() {
	conns := h.GetConnectionsCopy()
	now := time.Now()

	timeoutCount := 0
	for _, conn := range conns {
		if conn.IsHealthy(h.config.ClientTimeout) {
			continue
		}

		lastHeartbeat := conn.LastHeartbeat()
		h.logger.WarnKV("连接心跳超时，强制断开",
			"conn_id", conn.ID,
			"player_id", conn.PlayerID,
			"last_heartbeat", lastHeartbeat.Format(time.RFC3339),
			"idle", now.Sub(lastHeartbeat).String(),
		)

		if h.heartbeatTimeoutCallback != nil {
			h.heartbeatTimeoutCallback(conn.ID, conn.PlayerID, lastHeartbeat)
		}

		h.Unregister(context.Background(), conn.ID, DisconnectReasonHeartbeatTimeout)
		timeoutCount++
	}

	if timeoutCount > 0 {
		h.logger.InfoKV("心跳检查完成", "timeout_connections", timeoutCount)
	}
}
