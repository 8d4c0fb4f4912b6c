/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\presence\tracker.go
 * @Description: 在线状态与会话跟踪器
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/idgen"
	"github.com/kamalyes/go-toolbox/pkg/osx"
)

// Store 在线状态持久化接口（可选，用于分布式在线查询）
type Store interface {
	SetOnline(ctx context.Context, record *models.PresenceRecord) error
	SetOffline(ctx context.Context, playerID string, lastSeen time.Time) error
}

// EventSink 上下线事件回调（可选，用于跨节点广播在线状态变化）
type EventSink interface {
	PlayerOnline(ctx context.Context, playerID, nodeID string)
	PlayerOffline(ctx context.Context, playerID, nodeID string, lastSeen time.Time)
}

// TrackerConfig 跟踪器配置
type TrackerConfig struct {
	NodeID string               // 节点ID
	Store  Store                // 在线状态持久化（可为nil）
	Events EventSink            // 上下线事件回调（可为nil）
	Logger middleware.MudLogger // 日志器
}

// Tracker 在线状态与会话跟踪器
// 上下线以玩家连接数归零/非零为准，离线记录保留 last_seen 供"上次在线"查询
type Tracker struct {
	config *TrackerConfig

	mu        sync.RWMutex
	presence  map[string]*models.PresenceRecord // 玩家ID -> 在线记录
	sessions  map[string]*models.Session        // 玩家ID -> 当前会话
	connOwner map[string]string                 // 连接ID -> 玩家ID

	idGenerator models.IDGenerator
}

// NewTracker 创建跟踪器
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = &TrackerConfig{}
	}
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	workerID := osx.GetWorkerIdForSnowflake()
	return &Tracker{
		config:      config,
		presence:    make(map[string]*models.PresenceRecord),
		sessions:    make(map[string]*models.Session),
		connOwner:   make(map[string]string),
		idGenerator: idgen.NewShortFlakeGenerator(workerID),
	}
}

// OnConnect 登记一条新连接
// 玩家已有会话时附加到现有会话（多端在线），否则创建新会话；
// 连接数 0->1 时翻转为在线并发出上线事件
func (t *Tracker) OnConnect(ctx context.Context, conn *models.Connection, epoch string) *models.Session {
	t.mu.Lock()

	record, ok := t.presence[conn.PlayerID]
	if !ok {
		record = &models.PresenceRecord{PlayerID: conn.PlayerID}
		t.presence[conn.PlayerID] = record
	}

	session, ok := t.sessions[conn.PlayerID]
	if !ok || !session.Valid {
		session = &models.Session{
			ID:        t.idGenerator.GenerateRequestID(),
			PlayerID:  conn.PlayerID,
			Epoch:     epoch,
			CreatedAt: time.Now(),
			Valid:     true,
		}
		t.sessions[conn.PlayerID] = session
	}
	session.AttachConnection(conn.ID)
	t.connOwner[conn.ID] = conn.PlayerID
	conn.SessionID = session.ID

	record.ConnectionCount++
	record.NodeID = t.config.NodeID
	record.LastSeen = time.Now()
	wentOnline := !record.IsOnline
	record.IsOnline = true
	snapshot := *record

	t.mu.Unlock()

	if wentOnline {
		t.config.Logger.InfoKV("玩家上线", "player_id", conn.PlayerID, "conn_id", conn.ID, "session_id", session.ID)
		if t.config.Store != nil {
			if err := t.config.Store.SetOnline(ctx, &snapshot); err != nil {
				t.config.Logger.WarnKV("在线状态写入失败", "player_id", conn.PlayerID, "error", err)
			}
		}
		if t.config.Events != nil {
			t.config.Events.PlayerOnline(ctx, conn.PlayerID, t.config.NodeID)
		}
	}

	return session
}

// OnDisconnect 注销一条连接（幂等，未知连接为空操作）
// 连接数归零时翻转为离线、记录 last_seen、作废会话并发出下线事件
func (t *Tracker) OnDisconnect(ctx context.Context, connID string, reason models.DisconnectReason) {
	t.mu.Lock()

	playerID, ok := t.connOwner[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.connOwner, connID)

	record := t.presence[playerID]
	if record != nil && record.ConnectionCount > 0 {
		record.ConnectionCount--
	}

	// 仅处理当前会话持有的连接：被驱逐的旧会话连接断开时不能作废新会话
	if session, ok := t.sessions[playerID]; ok && session.HasConnection(connID) {
		// 最后一条连接断开后会话随之失效，下次连接开启新会话
		if session.DetachConnection(connID) == 0 {
			session.Valid = false
		}
	}

	wentOffline := false
	var lastSeen time.Time
	if record != nil && record.ConnectionCount == 0 && record.IsOnline {
		record.IsOnline = false
		record.LastSeen = time.Now()
		lastSeen = record.LastSeen
		wentOffline = true
	}

	t.mu.Unlock()

	if wentOffline {
		t.config.Logger.InfoKV("玩家离线", "player_id", playerID, "conn_id", connID, "reason", reason.String())
		if t.config.Store != nil {
			if err := t.config.Store.SetOffline(ctx, playerID, lastSeen); err != nil {
				t.config.Logger.WarnKV("离线状态写入失败", "player_id", playerID, "error", err)
			}
		}
		if t.config.Events != nil {
			t.config.Events.PlayerOffline(ctx, playerID, t.config.NodeID, lastSeen)
		}
	}
}

// GetPresence 获取玩家在线记录快照
// 从未上线过的玩家返回一条离线记录而不是错误
func (t *Tracker) GetPresence(playerID string) *models.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.presence[playerID]
	if !ok {
		return &models.PresenceRecord{PlayerID: playerID}
	}
	snapshot := *record
	return &snapshot
}

// GetSession 获取玩家当前会话
func (t *Tracker) GetSession(playerID string) (*models.Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, ok := t.sessions[playerID]
	if !ok || !session.Valid {
		return nil, errorx.NewError(models.ErrTypeSessionNotFound, playerID)
	}
	return session, nil
}

// StartNewSession 为玩家开启新会话，作废旧会话
// 返回旧会话的连接ID快照，由调用方负责断开这些连接
func (t *Tracker) StartNewSession(ctx context.Context, playerID, epoch string) (*models.Session, []string) {
	t.mu.Lock()

	var evicted []string
	if old, ok := t.sessions[playerID]; ok && old.Valid {
		old.Valid = false
		evicted = append(evicted, old.ConnectionIDs...)
	}

	session := &models.Session{
		ID:        t.idGenerator.GenerateRequestID(),
		PlayerID:  playerID,
		Epoch:     epoch,
		CreatedAt: time.Now(),
		Valid:     true,
	}
	t.sessions[playerID] = session

	t.mu.Unlock()

	t.config.Logger.InfoKV("开启新会话", "player_id", playerID, "session_id", session.ID, "evicted", len(evicted))
	return session, evicted
}

// OnlineCount 获取当前在线玩家数
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, record := range t.presence {
		if record.IsOnline {
			count++
		}
	}
	return count
}
