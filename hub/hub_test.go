/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\hub_test.go
 * @Description: Hub 连接注册/发送/待投递队列测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-mudhub/presence"
	"github.com/kamalyes/go-mudhub/rooms"
)

// newTestHub 创建测试用Hub
// 不启动事件循环，定时任务（心跳检查、过期清理）在测试中手动调用
func newTestHub(t *testing.T, config *Config) *Hub {
	t.Helper()

	if config == nil {
		config = DefaultConfig()
	}
	config.Logger = middleware.NoOpLoggerInstance

	tracker := presence.NewTracker(&presence.TrackerConfig{
		NodeID: "test-node",
		Logger: middleware.NoOpLoggerInstance,
	})
	h := NewHub(config, tracker, rooms.NewManager())
	t.Cleanup(func() {
		h.Shutdown(context.Background())
	})
	return h
}

// newTestConnection 创建测试用连接
// 不携带真实传输，注册后不会启动读写协程，测试直接从SendChan读取
func newTestConnection(connID, playerID string) *Connection {
	return models.NewConnection(connID, playerID).
		WithClientIP("198.51.100.7").
		WithSendChan(16)
}

// readPayload 从连接发送缓冲读取一条消息
func readPayload(t *testing.T, conn *Connection) []byte {
	t.Helper()
	select {
	case payload := <-conn.SendChan:
		return payload
	case <-time.After(time.Second):
		t.Fatal("读取连接发送缓冲超时")
		return nil
	}
}

func TestHub_RegisterAttachesToExistingSession(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	c1 := newTestConnection("c1", "alice")
	c2 := newTestConnection("c2", "alice")

	require.NoError(t, h.Register(ctx, c1))
	require.NoError(t, h.Register(ctx, c2))

	// 第二条连接附加到现有会话，不挤掉第一条
	assert.Equal(t, c1.SessionID, c2.SessionID)
	assert.False(t, c1.IsClosed())
	assert.Equal(t, 2, h.ConnectionCount())

	record := h.GetPresence("alice")
	assert.True(t, record.IsOnline)
	assert.Equal(t, 2, record.ConnectionCount)
	assert.Equal(t, 1, h.GetTracker().OnlineCount())
}

func TestHub_RegisterGeneratesConnectionID(t *testing.T) {
	h := newTestHub(t, nil)

	conn := newTestConnection("", "alice")
	require.NoError(t, h.Register(context.Background(), conn))
	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, h.GetNodeID(), conn.NodeID)
}

func TestHub_RegisterRejectedAfterShutdown(t *testing.T) {
	h := newTestHub(t, nil)
	h.Shutdown(context.Background())

	err := h.Register(context.Background(), newTestConnection("c1", "alice"))
	require.Error(t, err)
	assert.Equal(t, 0, h.ConnectionCount())
}

// TestHub_RateLimitRejectsWithoutSideEffects 超限注册不产生任何连接副作用
func TestHub_RateLimitRejectsWithoutSideEffects(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimiterConfig{
		MaxAttempts: 2,
		Window:      time.Minute,
	})
	config := DefaultConfig()
	config.RateLimiter = limiter

	h := newTestHub(t, config)
	ctx := context.Background()

	require.NoError(t, h.Register(ctx, newTestConnection("c1", "alice")))
	require.NoError(t, h.Register(ctx, newTestConnection("c2", "bob")))

	err := h.Register(ctx, newTestConnection("c3", "carol"))
	require.Error(t, err)
	assert.True(t, models.IsRateLimitedError(err))

	// 被拒绝的连接不登记、不影响在线状态
	_, exists := h.GetConnection("c3")
	assert.False(t, exists)
	assert.Equal(t, 2, h.ConnectionCount())
	assert.False(t, h.GetPresence("carol").IsOnline)
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	conn := newTestConnection("c1", "alice")
	require.NoError(t, h.Register(ctx, conn))

	var mu sync.Mutex
	var reasons []DisconnectReason
	h.SetDisconnectCallback(func(ctx context.Context, conn *Connection, reason DisconnectReason) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	})

	h.Unregister(ctx, "c1", DisconnectReasonClientRequest)
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, h.ConnectionCount())

	record := h.GetPresence("alice")
	assert.False(t, record.IsOnline)
	assert.Equal(t, 0, record.ConnectionCount)
	assert.False(t, record.LastSeen.IsZero())

	// 重复注销为空操作，不会二次递减计数
	h.Unregister(ctx, "c1", DisconnectReasonClientRequest)
	h.Unregister(ctx, "ghost", DisconnectReasonClientRequest)
	assert.Equal(t, 0, h.ConnectionCount())
	assert.Equal(t, 0, h.GetPresence("alice").ConnectionCount)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reasons) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHub_SendDelivered(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	conn := newTestConnection("c1", "alice")
	require.NoError(t, h.Register(ctx, conn))

	status := h.Send(ctx, "c1", []byte("hello"))
	assert.Equal(t, DeliveryStatusDelivered, status)
	assert.Equal(t, []byte("hello"), readPayload(t, conn))
}

func TestHub_SendToUnknownConnectionDropped(t *testing.T) {
	h := newTestHub(t, nil)

	status := h.Send(context.Background(), "ghost", []byte("hello"))
	assert.Equal(t, DeliveryStatusDropped, status)
	assert.Equal(t, int64(1), h.GetStats().MessagesDropped)
}

// TestHub_SendToClosedConnectionQueued 刚断开尚未注销的连接按玩家排队
func TestHub_SendToClosedConnectionQueued(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	conn := newTestConnection("c1", "alice")
	require.NoError(t, h.Register(ctx, conn))
	conn.Close()

	status := h.Send(ctx, "c1", []byte("hello"))
	assert.Equal(t, DeliveryStatusQueued, status)
	assert.Equal(t, 1, h.PendingCountForPlayer("alice"))
	assert.Equal(t, 1, h.PendingDepth())
}

func TestHub_SendToPlayerFanout(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	c1 := newTestConnection("c1", "alice")
	c2 := newTestConnection("c2", "alice")
	require.NoError(t, h.Register(ctx, c1))
	require.NoError(t, h.Register(ctx, c2))

	status := h.SendToPlayer(ctx, "alice", []byte("hello"))
	assert.Equal(t, DeliveryStatusDelivered, status)
	assert.Equal(t, []byte("hello"), readPayload(t, c1))
	assert.Equal(t, []byte("hello"), readPayload(t, c2))
}

func TestHub_SendToOfflinePlayerQueued(t *testing.T) {
	h := newTestHub(t, nil)

	status := h.SendToPlayer(context.Background(), "alice", []byte("hello"))
	assert.Equal(t, DeliveryStatusQueued, status)
	assert.Equal(t, 1, h.PendingCountForPlayer("alice"))
}

// TestHub_PendingEvictsOldestWhenFull 待投递队列满时挤出最旧消息
func TestHub_PendingEvictsOldestWhenFull(t *testing.T) {
	config := DefaultConfig()
	config.PendingPerPlayer = 2
	h := newTestHub(t, config)
	ctx := context.Background()

	var mu sync.Mutex
	var droppedPayloads []string
	h.SetPendingDropCallback(func(playerID string, dropped *models.PendingMessage) {
		mu.Lock()
		droppedPayloads = append(droppedPayloads, string(dropped.Payload))
		mu.Unlock()
	})

	h.SendToPlayer(ctx, "alice", []byte("m1"))
	h.SendToPlayer(ctx, "alice", []byte("m2"))
	h.SendToPlayer(ctx, "alice", []byte("m3"))

	assert.Equal(t, 2, h.PendingCountForPlayer("alice"))
	assert.Equal(t, 2, h.PendingDepth())

	mu.Lock()
	assert.Equal(t, []string{"m1"}, droppedPayloads)
	mu.Unlock()
}

// TestHub_PendingFlushedInOrderOnReconnect 重连后按入队顺序补投
func TestHub_PendingFlushedInOrderOnReconnect(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		h.SendToPlayer(ctx, "alice", []byte(fmt.Sprintf("m%d", i)))
	}
	require.Equal(t, 3, h.PendingCountForPlayer("alice"))

	conn := newTestConnection("c1", "alice")
	require.NoError(t, h.Register(ctx, conn))

	assert.Equal(t, []byte("m1"), readPayload(t, conn))
	assert.Equal(t, []byte("m2"), readPayload(t, conn))
	assert.Equal(t, []byte("m3"), readPayload(t, conn))
	assert.Equal(t, 0, h.PendingCountForPlayer("alice"))
	assert.Equal(t, 0, h.PendingDepth())
}

// TestHub_PendingSweepDropsExpired 超过最大存活时长的待投递消息被清理
func TestHub_PendingSweepDropsExpired(t *testing.T) {
	config := DefaultConfig()
	config.PendingMaxAge = 20 * time.Millisecond
	h := newTestHub(t, config)
	ctx := context.Background()

	var mu sync.Mutex
	dropped := 0
	h.SetPendingDropCallback(func(playerID string, msg *models.PendingMessage) {
		mu.Lock()
		dropped++
		mu.Unlock()
	})

	h.SendToPlayer(ctx, "alice", []byte("stale"))
	h.SendToPlayer(ctx, "bob", []byte("stale"))
	time.Sleep(30 * time.Millisecond)
	h.SendToPlayer(ctx, "bob", []byte("fresh"))

	h.sweepPending()

	assert.Equal(t, 0, h.PendingCountForPlayer("alice"))
	assert.Equal(t, 1, h.PendingCountForPlayer("bob"))
	assert.Equal(t, 1, h.PendingDepth())

	mu.Lock()
	assert.Equal(t, 2, dropped)
	mu.Unlock()
}

// TestHub_StartNewSession 开启新会话强制断开旧连接，待投递消息保留
func TestHub_StartNewSession(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	c1 := newTestConnection("c1", "alice")
	c2 := newTestConnection("c2", "alice")
	require.NoError(t, h.Register(ctx, c1))
	require.NoError(t, h.Register(ctx, c2))

	oldSessionID := c1.SessionID

	// 旧连接断开后产生的排队消息应存活到新会话首条连接
	c1.Close()
	c2.Close()
	h.SendToPlayer(ctx, "alice", []byte("while-away"))

	result := h.StartNewSession(ctx, "alice")
	assert.Equal(t, 2, result.Disconnected)
	assert.NotEqual(t, oldSessionID, result.SessionID)
	assert.Equal(t, 0, h.ConnectionCount())

	session, err := h.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, session.ID)
	assert.True(t, session.Valid)

	// 新会话首条连接注册时补投
	c3 := newTestConnection("c3", "alice")
	require.NoError(t, h.Register(ctx, c3))
	assert.Equal(t, result.SessionID, c3.SessionID)
	assert.Equal(t, []byte("while-away"), readPayload(t, c3))
}

// TestHub_HeartbeatTimeoutForcesDisconnect 心跳超时的连接被强制断开
func TestHub_HeartbeatTimeoutForcesDisconnect(t *testing.T) {
	config := DefaultConfig()
	config.ClientTimeout = 50 * time.Millisecond
	h := newTestHub(t, config)
	ctx := context.Background()

	stale := newTestConnection("c1", "alice")
	fresh := newTestConnection("c2", "bob")
	require.NoError(t, h.Register(ctx, stale))
	require.NoError(t, h.Register(ctx, fresh))

	var mu sync.Mutex
	var timedOut []string
	h.SetHeartbeatTimeoutCallback(func(connID, playerID string, lastHeartbeat time.Time) {
		mu.Lock()
		timedOut = append(timedOut, connID)
		mu.Unlock()
	})

	stale.SetLastHeartbeat(time.Now().Add(-time.Minute))
	h.checkHeartbeat()

	_, exists := h.GetConnection("c1")
	assert.False(t, exists)
	assert.True(t, stale.IsClosed())
	assert.False(t, h.GetPresence("alice").IsOnline)

	_, exists = h.GetConnection("c2")
	assert.True(t, exists)
	assert.True(t, h.GetPresence("bob").IsOnline)

	mu.Lock()
	assert.Equal(t, []string{"c1"}, timedOut)
	mu.Unlock()
}

func TestHub_GetStats(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	conn := newTestConnection("c1", "alice")
	require.NoError(t, h.Register(ctx, conn))
	h.GetRooms().Subscribe("c1", "foyer")

	h.Send(ctx, "c1", []byte("hello"))
	h.SendToPlayer(ctx, "ghost", []byte("queued"))
	h.Send(ctx, "unknown", []byte("dropped"))

	stats := h.GetStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.WebSocketConnections)
	assert.Equal(t, 0, stats.SSEConnections)
	assert.Equal(t, 1, stats.OnlinePlayers)
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, int64(1), stats.MessagesSent)
	assert.Equal(t, int64(1), stats.MessagesQueued)
	assert.Equal(t, int64(1), stats.MessagesDropped)
	assert.Equal(t, 1, stats.PendingDepth)
}

func TestHub_ShutdownDisconnectsAll(t *testing.T) {
	h := newTestHub(t, nil)
	ctx := context.Background()

	c1 := newTestConnection("c1", "alice")
	c2 := newTestConnection("c2", "bob")
	require.NoError(t, h.Register(ctx, c1))
	require.NoError(t, h.Register(ctx, c2))

	h.Shutdown(ctx)

	assert.Equal(t, 0, h.ConnectionCount())
	assert.True(t, c1.IsClosed())
	assert.True(t, c2.IsClosed())
	assert.Equal(t, 0, h.GetTracker().OnlineCount())

	// 重复关闭为空操作
	assert.NotPanics(t, func() {
		h.Shutdown(ctx)
	})
}
