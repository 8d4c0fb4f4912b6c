/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\presence.go
 * @Description: 在线状态与会话模型
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"time"
)

// PresenceRecord 玩家在线状态聚合记录
// 连接数归零时翻转为离线并记录 last_seen，记录本身永不删除
type PresenceRecord struct {
	PlayerID        string    `json:"player_id"`        // 玩家ID
	IsOnline        bool      `json:"is_online"`        // 是否在线（连接数>0）
	ConnectionCount int       `json:"connection_count"` // 当前连接数
	LastSeen        time.Time `json:"last_seen"`        // 最后在线时间（最后一条连接断开时刻）
	NodeID          string    `json:"node_id"`          // 所在节点ID（分布式部署用）
}

// Session 玩家逻辑会话，可横跨多条物理连接
// 仅当至少持有一条存活连接且纪元匹配时有效
type Session struct {
	ID            string    `json:"id"`             // 会话ID
	PlayerID      string    `json:"player_id"`      // 玩家ID
	ConnectionIDs []string  `json:"connection_ids"` // 关联连接ID列表
	Epoch         string    `json:"epoch"`          // 创建时的认证纪元
	CreatedAt     time.Time `json:"created_at"`     // 创建时间
	Valid         bool      `json:"valid"`          // 有效标志
}

// HasConnection 检查会话是否包含指定连接
func (s *Session) HasConnection(connID string) bool {
	for _, id := range s.ConnectionIDs {
		if id == connID {
			return true
		}
	}
	return false
}

// AttachConnection 关联新连接（重复关联为空操作）
func (s *Session) AttachConnection(connID string) {
	if s.HasConnection(connID) {
		return
	}
	s.ConnectionIDs = append(s.ConnectionIDs, connID)
}

// DetachConnection 解除连接关联，返回剩余连接数
func (s *Session) DetachConnection(connID string) int {
	for i, id := range s.ConnectionIDs {
		if id == connID {
			s.ConnectionIDs = append(s.ConnectionIDs[:i], s.ConnectionIDs[i+1:]...)
			break
		}
	}
	return len(s.ConnectionIDs)
}

// 玩家上下线事件频道
const (
	// EventPlayerOnline 玩家上线事件
	EventPlayerOnline = "mudhub.presence.online"
	// EventPlayerOffline 玩家下线事件
	EventPlayerOffline = "mudhub.presence.offline"
)

// PlayerStatusEvent 玩家上下线事件（跨节点广播）
type PlayerStatusEvent struct {
	PlayerID  string    `json:"player_id"`           // 玩家ID
	Online    bool      `json:"online"`              // 上线true/下线false
	NodeID    string    `json:"node_id"`             // 产生事件的节点ID
	LastSeen  time.Time `json:"last_seen,omitempty"` // 最后在线时间（仅下线事件）
	Timestamp time.Time `json:"timestamp"`           // 事件时间
}

// PlayerStatusEventHandler 玩家上下线事件处理器
type PlayerStatusEventHandler func(event *PlayerStatusEvent) error
