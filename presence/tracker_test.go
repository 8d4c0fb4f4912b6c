/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\presence\tracker_test.go
 * @Description: 在线状态与会话跟踪器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 记录上下线事件的测试桩
type recordingSink struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (s *recordingSink) PlayerOnline(ctx context.Context, playerID, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = append(s.online, playerID)
}

func (s *recordingSink) PlayerOffline(ctx context.Context, playerID, nodeID string, lastSeen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = append(s.offline, playerID)
}

func newTestTracker(sink EventSink) *Tracker {
	return NewTracker(&TrackerConfig{
		NodeID: "node-test",
		Events: sink,
		Logger: middleware.NoOpLoggerInstance,
	})
}

func TestTracker_OnConnectOnDisconnect(t *testing.T) {
	sink := &recordingSink{}
	tracker := newTestTracker(sink)
	ctx := context.Background()

	conn1 := models.NewConnection("c1", "alice")
	session := tracker.OnConnect(ctx, conn1, "E1")
	require.NotNil(t, session)
	assert.Equal(t, session.ID, conn1.SessionID)

	record := tracker.GetPresence("alice")
	assert.True(t, record.IsOnline)
	assert.Equal(t, 1, record.ConnectionCount)
	assert.Equal(t, "node-test", record.NodeID)
	assert.Equal(t, []string{"alice"}, sink.online)

	// 第二条连接附加到同一会话，不重复触发上线事件
	conn2 := models.NewConnection("c2", "alice")
	session2 := tracker.OnConnect(ctx, conn2, "E1")
	assert.Equal(t, session.ID, session2.ID)
	assert.Equal(t, 2, tracker.GetPresence("alice").ConnectionCount)
	assert.Len(t, sink.online, 1)

	// 断开一条连接仍在线
	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonClientRequest)
	record = tracker.GetPresence("alice")
	assert.True(t, record.IsOnline)
	assert.Equal(t, 1, record.ConnectionCount)
	assert.Empty(t, sink.offline)

	// 最后一条断开翻转为离线
	before := time.Now()
	tracker.OnDisconnect(ctx, "c2", models.DisconnectReasonReadError)
	record = tracker.GetPresence("alice")
	assert.False(t, record.IsOnline)
	assert.Equal(t, 0, record.ConnectionCount)
	assert.False(t, record.LastSeen.Before(before))
	assert.Equal(t, []string{"alice"}, sink.offline)
}

// TestTracker_OnDisconnectIdempotent 测试重复/未知连接注销为空操作
func TestTracker_OnDisconnectIdempotent(t *testing.T) {
	sink := &recordingSink{}
	tracker := newTestTracker(sink)
	ctx := context.Background()

	conn := models.NewConnection("c1", "alice")
	tracker.OnConnect(ctx, conn, "E1")

	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonClientRequest)
	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonClientRequest)
	tracker.OnDisconnect(ctx, "never-existed", models.DisconnectReasonUnknown)

	record := tracker.GetPresence("alice")
	assert.False(t, record.IsOnline)
	assert.Equal(t, 0, record.ConnectionCount)
	assert.Len(t, sink.offline, 1)
}

func TestTracker_GetPresenceUnknownPlayer(t *testing.T) {
	tracker := newTestTracker(nil)

	record := tracker.GetPresence("stranger")
	require.NotNil(t, record)
	assert.Equal(t, "stranger", record.PlayerID)
	assert.False(t, record.IsOnline)
	assert.True(t, record.LastSeen.IsZero())
}

func TestTracker_StartNewSession(t *testing.T) {
	tracker := newTestTracker(nil)
	ctx := context.Background()

	conn1 := models.NewConnection("c1", "alice")
	conn2 := models.NewConnection("c2", "alice")
	oldSession := tracker.OnConnect(ctx, conn1, "E1")
	tracker.OnConnect(ctx, conn2, "E1")

	newSession, evicted := tracker.StartNewSession(ctx, "alice", "E1")
	require.NotNil(t, newSession)
	assert.NotEqual(t, oldSession.ID, newSession.ID)
	assert.ElementsMatch(t, []string{"c1", "c2"}, evicted)
	assert.False(t, oldSession.Valid)

	current, err := tracker.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, newSession.ID, current.ID)

	// 被驱逐连接随后注销，不影响新会话的有效性
	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonNewSession)
	tracker.OnDisconnect(ctx, "c2", models.DisconnectReasonNewSession)
	current, err = tracker.GetSession("alice")
	require.NoError(t, err)
	assert.True(t, current.Valid)

	// 无旧会话的玩家开新会话不驱逐任何连接
	_, evicted = tracker.StartNewSession(ctx, "bob", "E1")
	assert.Empty(t, evicted)
}

// TestTracker_SessionInvalidatedOnFullDisconnect 全部连接断开后会话失效，重连开启新会话
func TestTracker_SessionInvalidatedOnFullDisconnect(t *testing.T) {
	tracker := newTestTracker(nil)
	ctx := context.Background()

	conn1 := models.NewConnection("c1", "alice")
	conn2 := models.NewConnection("c2", "alice")
	oldSession := tracker.OnConnect(ctx, conn1, "E1")
	tracker.OnConnect(ctx, conn2, "E1")

	// 还剩一条存活连接时会话仍有效
	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonClientRequest)
	current, err := tracker.GetSession("alice")
	require.NoError(t, err)
	assert.True(t, current.Valid)

	// 最后一条连接断开，会话失效
	tracker.OnDisconnect(ctx, "c2", models.DisconnectReasonReadError)
	assert.False(t, oldSession.Valid)
	_, err = tracker.GetSession("alice")
	assert.Error(t, err)

	// 重连得到一个全新会话，而不是复用失效的旧会话
	conn3 := models.NewConnection("c3", "alice")
	newSession := tracker.OnConnect(ctx, conn3, "E1")
	require.NotNil(t, newSession)
	assert.NotEqual(t, oldSession.ID, newSession.ID)
	assert.True(t, newSession.Valid)
	assert.Equal(t, newSession.ID, conn3.SessionID)
}

func TestTracker_GetSessionNotFound(t *testing.T) {
	tracker := newTestTracker(nil)

	_, err := tracker.GetSession("ghost")
	assert.Error(t, err)
}

func TestTracker_OnlineCount(t *testing.T) {
	tracker := newTestTracker(nil)
	ctx := context.Background()

	assert.Equal(t, 0, tracker.OnlineCount())

	tracker.OnConnect(ctx, models.NewConnection("c1", "alice"), "E1")
	tracker.OnConnect(ctx, models.NewConnection("c2", "bob"), "E1")
	assert.Equal(t, 2, tracker.OnlineCount())

	tracker.OnDisconnect(ctx, "c1", models.DisconnectReasonClientRequest)
	assert.Equal(t, 1, tracker.OnlineCount())
}
