/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-19 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\router\router_test.go
 * @Description: 游戏事件路由器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// fakeBus 记录发布调用的总线替身
type fakeBus struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakeBus) Publish(ctx context.Context, subject string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeBus) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

// fakeHub 记录本地扇出调用的连接中心替身
type fakeHub struct {
	mu           sync.Mutex
	roomCalls    []string
	playerCalls  []string
	globalCalls  int
	playerStatus models.DeliveryStatus
}

func newFakeHub() *fakeHub {
	return &fakeHub{playerStatus: models.DeliveryStatusDelivered}
}

func (f *fakeHub) BroadcastToRoom(ctx context.Context, roomID string, payload []byte, excludeConnIDs ...string) *models.BroadcastResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomCalls = append(f.roomCalls, roomID)
	return &models.BroadcastResult{RoomID: roomID, Total: 1, Delivered: 1}
}

func (f *fakeHub) SendToPlayer(ctx context.Context, playerID string, payload []byte) models.DeliveryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playerCalls = append(f.playerCalls, playerID)
	return f.playerStatus
}

func (f *fakeHub) BroadcastToAll(ctx context.Context, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.globalCalls++
	return 2
}

func newTestRouter(bus EventBus, hub LocalHub, fallback FallbackMode) *Router {
	return NewRouter(&Config{
		Bus:      bus,
		Hub:      hub,
		NodeID:   "node-test",
		Fallback: fallback,
		Logger:   middleware.NoOpLoggerInstance,
	})
}

func TestRouter_RouteRoomEvent(t *testing.T) {
	bus := &fakeBus{}
	hub := newFakeHub()
	r := newTestRouter(bus, hub, FallbackModeLocal)

	event := models.NewGameEvent(models.EventKindChat).
		SetRoomID("foyer").
		SetActorPlayerID("alice").
		SetContent("hello")

	require.NoError(t, r.Route(context.Background(), event))

	assert.Equal(t, []string{"mud.room.foyer"}, bus.published())
	assert.Equal(t, []string{"foyer"}, hub.roomCalls)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "node-test", event.SourceNodeID)
	assert.Equal(t, int64(1), r.GetStats().Routed)
}

func TestRouter_RoutePlayerEvent(t *testing.T) {
	t.Run("本地投递成功时不走总线", func(t *testing.T) {
		bus := &fakeBus{}
		hub := newFakeHub()
		r := newTestRouter(bus, hub, FallbackModeLocal)

		event := models.NewGameEvent(models.EventKindTell).
			SetTargetPlayerID("bob").
			SetContent("psst")

		require.NoError(t, r.Route(context.Background(), event))
		assert.Equal(t, []string{"bob"}, hub.playerCalls)
		assert.Empty(t, bus.published())
	})

	t.Run("玩家不在本节点时发布到玩家主题", func(t *testing.T) {
		bus := &fakeBus{}
		hub := newFakeHub()
		hub.playerStatus = models.DeliveryStatusQueued
		r := newTestRouter(bus, hub, FallbackModeLocal)

		event := models.NewGameEvent(models.EventKindSystemNotice).
			SetTargetPlayerID("bob").
			SetContent("notice")

		require.NoError(t, r.Route(context.Background(), event))
		assert.Equal(t, []string{"mud.player.bob"}, bus.published())
	})
}

func TestRouter_RouteSystemEvent(t *testing.T) {
	bus := &fakeBus{}
	hub := newFakeHub()
	r := newTestRouter(bus, hub, FallbackModeLocal)

	event := models.NewGameEvent(models.EventKindSystemWide).
		SetContent("server restart soon")

	require.NoError(t, r.Route(context.Background(), event))
	assert.Equal(t, []string{"mud.system"}, bus.published())
	assert.Equal(t, 1, hub.globalCalls)
}

func TestRouter_RouteInvalidEvent(t *testing.T) {
	r := newTestRouter(&fakeBus{}, newFakeHub(), FallbackModeLocal)

	// 房间事件缺少room_id
	event := models.NewGameEvent(models.EventKindChat).SetContent("orphan")
	assert.Error(t, r.Route(context.Background(), event))

	// 未知事件类型
	unknown := models.NewGameEvent(models.EventKind("teleport"))
	assert.Error(t, r.Route(context.Background(), unknown))
}

// TestRouter_CircuitOpenFallbackLocal 熔断打开时默认降级为仅本地扇出
func TestRouter_CircuitOpenFallbackLocal(t *testing.T) {
	bus := &fakeBus{err: errorx.NewError(models.ErrTypeCircuitOpen)}
	hub := newFakeHub()
	r := newTestRouter(bus, hub, FallbackModeLocal)

	event := models.NewGameEvent(models.EventKindChat).
		SetRoomID("foyer").
		SetContent("still heard locally")

	require.NoError(t, r.Route(context.Background(), event))
	assert.Equal(t, []string{"foyer"}, hub.roomCalls)
	assert.Equal(t, int64(1), r.GetStats().Fallbacks)
	assert.Equal(t, int64(1), r.GetStats().Routed)
}

// TestRouter_CircuitOpenFallbackDrop 配置为丢弃时事件不做任何投递
func TestRouter_CircuitOpenFallbackDrop(t *testing.T) {
	bus := &fakeBus{err: errorx.NewError(models.ErrTypeCircuitOpen)}
	hub := newFakeHub()
	r := newTestRouter(bus, hub, FallbackModeDrop)

	event := models.NewGameEvent(models.EventKindChat).
		SetRoomID("foyer").
		SetContent("gone")

	// 熔断绝不向调用方报错
	require.NoError(t, r.Route(context.Background(), event))
	assert.Empty(t, hub.roomCalls)
	assert.Equal(t, int64(1), r.GetStats().Dropped)
	assert.Equal(t, int64(0), r.GetStats().Routed)
}

// TestRouter_PublishFailureStillFansOutLocally 非熔断的发布失败不阻断本地投递
func TestRouter_PublishFailureStillFansOutLocally(t *testing.T) {
	bus := &fakeBus{err: errorx.NewError(models.ErrTypeDeadLettered, "m1")}
	hub := newFakeHub()
	r := newTestRouter(bus, hub, FallbackModeLocal)

	event := models.NewGameEvent(models.EventKindCombat).
		SetRoomID("arena").
		SetContent("slash")

	require.NoError(t, r.Route(context.Background(), event))
	assert.Equal(t, []string{"arena"}, hub.roomCalls)
}

func TestRouter_NoBusSingleNode(t *testing.T) {
	hub := newFakeHub()
	r := newTestRouter(nil, hub, FallbackModeLocal)

	event := models.NewGameEvent(models.EventKindRoomEnter).
		SetRoomID("foyer").
		SetActorPlayerID("alice")

	require.NoError(t, r.Route(context.Background(), event))
	assert.Equal(t, []string{"foyer"}, hub.roomCalls)
}

func TestSubjects_Parse(t *testing.T) {
	roomID, ok := ParseRoomSubject(RoomSubject("foyer"))
	require.True(t, ok)
	assert.Equal(t, "foyer", roomID)

	playerID, ok := ParsePlayerSubject(PlayerSubject("alice"))
	require.True(t, ok)
	assert.Equal(t, "alice", playerID)

	_, ok = ParseRoomSubject("mud.system")
	assert.False(t, ok)
	_, ok = ParseRoomSubject(SubjectRoomPrefix)
	assert.False(t, ok)
}
