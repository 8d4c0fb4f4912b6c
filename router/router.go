/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-19 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\router\router.go
 * @Description: 游戏事件路由器 - 按事件范围分派到总线发布与本地扇出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/idgen"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/osx"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
)

// EventBus 总线发布接口
type EventBus interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// LocalHub 本地连接扇出接口
type LocalHub interface {
	BroadcastToRoom(ctx context.Context, roomID string, payload []byte, excludeConnIDs ...string) *models.BroadcastResult
	SendToPlayer(ctx context.Context, playerID string, payload []byte) models.DeliveryStatus
	BroadcastToAll(ctx context.Context, payload []byte) int
}

// FallbackMode 总线不可用（熔断打开）时的降级策略
type FallbackMode string

const (
	// FallbackModeLocal 仅本地扇出：放弃跨节点传播，本节点订阅者照常收到
	FallbackModeLocal FallbackMode = "local"
	// FallbackModeDrop 丢弃事件：只记录日志与计数
	FallbackModeDrop FallbackMode = "drop"
)

// Config 路由器配置
type Config struct {
	Bus      EventBus             // 总线（可为nil，表示单节点部署，只做本地扇出）
	Hub      LocalHub             // 本地连接中心（必填）
	NodeID   string               // 本节点ID（填充事件来源）
	Fallback FallbackMode         // 熔断降级策略，默认仅本地扇出
	Logger   middleware.MudLogger // 日志器
}

// Router 游戏事件路由器
// 按 Kind 推导的投递范围分派：房间事件发布到房间主题并本地广播，
// 玩家事件直投该玩家连接，系统事件全服广播
type Router struct {
	config      *Config
	idGenerator models.IDGenerator
	logger      middleware.MudLogger

	routed    atomic.Int64 // 成功路由的事件数
	fallbacks atomic.Int64 // 熔断降级为仅本地扇出的事件数
	dropped   atomic.Int64 // 熔断降级丢弃的事件数
}

// NewRouter 创建路由器
func NewRouter(config *Config) *Router {
	if config.Fallback == "" {
		config.Fallback = FallbackModeLocal
	}
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	return &Router{
		config:      config,
		idGenerator: idgen.NewShortFlakeGenerator(osx.GetWorkerIdForSnowflake()),
		logger:      config.Logger,
	}
}

// Route 路由一条游戏事件
// 校验失败返回错误；总线熔断按配置降级，绝不因熔断向调用方报错
func (r *Router) Route(ctx context.Context, event *models.GameEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	event.ID = mathx.IfEmpty(event.ID, r.idGenerator.GenerateRequestID())
	event.SourceNodeID = mathx.IfEmpty(event.SourceNodeID, r.config.NodeID)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	payload, err := models.EncodeEvent(event)
	if err != nil {
		return err
	}

	switch event.Kind.Scope() {
	case models.EventScopeRoom:
		return r.routeRoom(ctx, event, payload)
	case models.EventScopePlayer:
		return r.routePlayer(ctx, event, payload)
	default:
		return r.routeSystem(ctx, event, payload)
	}
}

// routeRoom 房间范围：发布到房间主题供其他节点消费，并本地广播给订阅者
func (r *Router) routeRoom(ctx context.Context, event *models.GameEvent, payload []byte) error {
	if proceed := r.publishWithFallback(ctx, RoomSubject(event.RoomID), event, payload); !proceed {
		return nil
	}

	result := r.config.Hub.BroadcastToRoom(ctx, event.RoomID, payload)
	r.routed.Add(1)
	r.logger.DebugKV("房间事件已路由",
		"event_id", event.ID,
		"kind", event.Kind.String(),
		"room_id", event.RoomID,
		"delivered", result.Delivered,
		"queued", result.Queued,
	)
	return nil
}

// routePlayer 玩家范围：直投本地连接；玩家不在本节点时发布到玩家主题
func (r *Router) routePlayer(ctx context.Context, event *models.GameEvent, payload []byte) error {
	status := r.config.Hub.SendToPlayer(ctx, event.TargetPlayerID, payload)

	// 本地没有存活连接时交给总线，玩家所在节点负责投递
	if status != models.DeliveryStatusDelivered {
		if proceed := r.publishWithFallback(ctx, PlayerSubject(event.TargetPlayerID), event, payload); !proceed {
			return nil
		}
	}

	r.routed.Add(1)
	r.logger.DebugKV("玩家事件已路由",
		"event_id", event.ID,
		"kind", event.Kind.String(),
		"target_player_id", event.TargetPlayerID,
		"local_status", status.String(),
	)
	return nil
}

// routeSystem 系统范围：发布到系统主题并广播给本节点全部连接
func (r *Router) routeSystem(ctx context.Context, event *models.GameEvent, payload []byte) error {
	if proceed := r.publishWithFallback(ctx, SubjectSystem, event, payload); !proceed {
		return nil
	}

	delivered := r.config.Hub.BroadcastToAll(ctx, payload)
	r.routed.Add(1)
	r.logger.DebugKV("系统事件已路由",
		"event_id", event.ID,
		"kind", event.Kind.String(),
		"delivered", delivered,
	)
	return nil
}

// publishWithFallback 发布到总线，熔断打开时按配置降级
// 返回false表示事件已按丢弃策略处理，调用方不应再做本地扇出
func (r *Router) publishWithFallback(ctx context.Context, subject string, event *models.GameEvent, payload []byte) bool {
	if r.config.Bus == nil {
		return true
	}

	err := r.config.Bus.Publish(ctx, subject, payload)
	if err == nil {
		return true
	}

	if models.IsCircuitOpenError(err) {
		if r.config.Fallback == FallbackModeDrop {
			r.dropped.Add(1)
			r.logger.WarnKV("总线熔断打开，事件按配置丢弃",
				"event_id", event.ID,
				"kind", event.Kind.String(),
				"subject", subject,
			)
			return false
		}

		r.fallbacks.Add(1)
		r.logger.WarnKV("总线熔断打开，降级为仅本地扇出",
			"event_id", event.ID,
			"kind", event.Kind.String(),
			"subject", subject,
		)
		return true
	}

	// 其他发布失败（重试耗尽进死信等）不阻断本地投递
	r.logger.WithError(err).ErrorKV("总线发布失败，继续本地扇出",
		"event_id", event.ID,
		"subject", subject,
	)
	return true
}

// Stats 路由统计快照
type Stats struct {
	Routed    int64 `json:"routed"`    // 成功路由数
	Fallbacks int64 `json:"fallbacks"` // 降级为仅本地扇出数
	Dropped   int64 `json:"dropped"`   // 降级丢弃数
}

// GetStats 获取路由统计
func (r *Router) GetStats() *Stats {
	return &Stats{
		Routed:    r.routed.Load(),
		Fallbacks: r.fallbacks.Load(),
		Dropped:   r.dropped.Load(),
	}
}
