/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\rooms\manager.go
 * @Description: 房间订阅管理器 - 维护连接与房间的订阅关系
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package rooms

import (
	"sync"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// Manager 房间订阅管理器
// 不变量：任一连接同时最多订阅一个房间（MUD玩家只能身处一个房间）
type Manager struct {
	mu sync.RWMutex

	// roomSubscribers 房间 -> 订阅连接ID集合
	roomSubscribers map[string]map[string]struct{}
	// connRoom 连接ID -> 当前房间
	connRoom map[string]string
}

// NewManager 创建房间订阅管理器
func NewManager() *Manager {
	return &Manager{
		roomSubscribers: make(map[string]map[string]struct{}),
		connRoom:        make(map[string]string),
	}
}

// Subscribe 将连接订阅到指定房间
// 连接已订阅其他房间时先自动退订，等价于一次Move
func (m *Manager) Subscribe(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeLocked(connID, roomID)
}

// subscribeLocked 持锁订阅，调用方必须持有写锁
func (m *Manager) subscribeLocked(connID, roomID string) {
	if prev, ok := m.connRoom[connID]; ok {
		if prev == roomID {
			return
		}
		m.removeFromRoomLocked(connID, prev)
	}

	subs, ok := m.roomSubscribers[roomID]
	if !ok {
		subs = make(map[string]struct{})
		m.roomSubscribers[roomID] = subs
	}
	subs[connID] = struct{}{}
	m.connRoom[connID] = roomID
}

// Unsubscribe 退订连接当前所在的房间（未订阅时为空操作）
func (m *Manager) Unsubscribe(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.connRoom[connID]
	if !ok {
		return
	}
	m.removeFromRoomLocked(connID, roomID)
	delete(m.connRoom, connID)
}

// removeFromRoomLocked 持锁从房间集合中移除连接，空房间随之回收
func (m *Manager) removeFromRoomLocked(connID, roomID string) {
	subs, ok := m.roomSubscribers[roomID]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(m.roomSubscribers, roomID)
	}
}

// Move 将连接从一个房间原子地迁移到另一个房间
// 迁移过程中连接不会出现在两个房间，也不会瞬间不属于任何房间
func (m *Manager) Move(connID, fromRoomID, toRoomID string) error {
	if toRoomID == "" {
		return errorx.NewError(models.ErrTypeRoomMoveInvalid, "empty target room")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.connRoom[connID]
	if !ok || current != fromRoomID {
		return errorx.NewError(models.ErrTypeNotSubscribed, connID, fromRoomID)
	}

	m.subscribeLocked(connID, toRoomID)
	return nil
}

// GetSubscribers 获取房间当前订阅连接ID快照
func (m *Manager) GetSubscribers(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs, ok := m.roomSubscribers[roomID]
	if !ok {
		return nil
	}

	result := make([]string, 0, len(subs))
	for connID := range subs {
		result = append(result, connID)
	}
	return result
}

// GetRoom 获取连接当前订阅的房间（未订阅时返回空串和false）
func (m *Manager) GetRoom(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomID, ok := m.connRoom[connID]
	return roomID, ok
}

// RemoveConnection 连接断开时清理其全部订阅关系（幂等）
func (m *Manager) RemoveConnection(connID string) {
	m.Unsubscribe(connID)
}

// RoomCount 获取当前有订阅者的房间数
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roomSubscribers)
}

// SubscriberCount 获取房间当前订阅者数量
func (m *Manager) SubscriberCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roomSubscribers[roomID])
}
