/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-22 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\exports_core.go
 * @Description: 核心包（认证/房间/在线状态/路由/事件/指标/中间件）的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package mudhub

import (
	"github.com/kamalyes/go-mudhub/auth"
	"github.com/kamalyes/go-mudhub/events"
	"github.com/kamalyes/go-mudhub/metrics"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-mudhub/presence"
	"github.com/kamalyes/go-mudhub/rooms"
	"github.com/kamalyes/go-mudhub/router"
)

// ============================================================================
// Models 类型导出
// ============================================================================

type (
	GameEvent         = models.GameEvent
	EventKind         = models.EventKind
	EventScope        = models.EventScope
	Envelope          = models.Envelope
	PendingMessage    = models.PendingMessage
	HubStats          = models.HubStats
	BroadcastResult   = models.BroadcastResult
	NewSessionResult  = models.NewSessionResult
	ReplayResult      = models.ReplayResult
	PresenceRecord    = models.PresenceRecord
	Session           = models.Session
	PlayerStatusEvent = models.PlayerStatusEvent
	DLQMessage        = models.DLQMessage
	ConnectionType    = models.ConnectionType
	DeliveryStatus    = models.DeliveryStatus
	DisconnectReason  = models.DisconnectReason
	CircuitState      = models.CircuitState
	DLQStatus         = models.DLQStatus
)

// ============================================================================
// Auth 类型和函数导出
// ============================================================================

type (
	TokenService       = auth.TokenService
	TokenServiceConfig = auth.TokenServiceConfig
	TokenClaims        = auth.TokenClaims
	EpochGuard         = auth.EpochGuard
	Epoch              = auth.Epoch
)

var (
	NewTokenService           = auth.NewTokenService
	DefaultTokenServiceConfig = auth.DefaultTokenServiceConfig
	NewEpochGuard             = auth.NewEpochGuard
)

// ============================================================================
// Rooms / Presence 导出
// ============================================================================

type (
	RoomManager     = rooms.Manager
	PresenceTracker = presence.Tracker
	TrackerConfig   = presence.TrackerConfig
	PresenceStore   = presence.Store
	PresenceSink    = presence.EventSink
)

var (
	NewRoomManager     = rooms.NewManager
	NewPresenceTracker = presence.NewTracker
)

// ============================================================================
// Router 导出
// ============================================================================

type (
	Router       = router.Router
	RouterConfig = router.Config
	RouterStats  = router.Stats
	EventBus     = router.EventBus
	FallbackMode = router.FallbackMode
)

const (
	FallbackModeLocal = router.FallbackModeLocal
	FallbackModeDrop  = router.FallbackModeDrop
)

var (
	NewRouter     = router.NewRouter
	RoomSubject   = router.RoomSubject
	PlayerSubject = router.PlayerSubject
)

// ============================================================================
// Events / Metrics / Middleware 导出
// ============================================================================

type (
	EventPublisher    = events.Publisher
	EventsConfig      = events.Config
	MetricsExporter   = metrics.Exporter
	ExporterConfig    = metrics.ExporterConfig
	MudLogger         = middleware.MudLogger
	RateLimiter       = middleware.RateLimiter
	RateLimiterConfig = middleware.RateLimiterConfig
)

var (
	NewEventPublisher  = events.NewPublisher
	NewMetricsExporter = metrics.NewExporter
	StartMetricsServer = metrics.StartServer

	NewMudLogger        = middleware.NewMudLogger
	NewDefaultMudLogger = middleware.NewDefaultMudLogger
	NewNoOpLogger       = middleware.NewNoOpLogger

	NewRateLimiter           = middleware.NewRateLimiter
	DefaultRateLimiterConfig = middleware.DefaultRateLimiterConfig
)
