/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-22 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\exports_bus.go
 * @Description: 可靠消息总线包的类型和函数导出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package mudhub

import (
	"github.com/kamalyes/go-mudhub/bus"
)

// ============================================================================
// Bus 类型导出
// ============================================================================

type (
	ReliableBus          = bus.ReliableBus
	BusConfig            = bus.Config
	Broker               = bus.Broker
	MemoryBroker         = bus.MemoryBroker
	RedisBroker          = bus.RedisBroker
	RedisBrokerConfig    = bus.RedisBrokerConfig
	Delivery             = bus.Delivery
	DeliveryHandler      = bus.DeliveryHandler
	SubscribeHandler     = bus.SubscribeHandler
	Subscription         = bus.Subscription
	CircuitBreaker       = bus.CircuitBreaker
	CircuitBreakerConfig = bus.CircuitBreakerConfig
	BatcherConfig        = bus.BatcherConfig
	DLQStore             = bus.DLQStore
	MemoryDLQStore       = bus.MemoryDLQStore
	GormDLQStore         = bus.GormDLQStore
	BusMetricsSnapshot   = bus.MetricsSnapshot
)

// ============================================================================
// Bus 函数导出
// ============================================================================

var (
	NewReliableBus              = bus.NewReliableBus
	DefaultBusConfig            = bus.DefaultConfig
	NewMemoryBroker             = bus.NewMemoryBroker
	NewRedisBroker              = bus.NewRedisBroker
	DefaultRedisBrokerConfig    = bus.DefaultRedisBrokerConfig
	NewCircuitBreaker           = bus.NewCircuitBreaker
	DefaultCircuitBreakerConfig = bus.DefaultCircuitBreakerConfig
	DefaultBatcherConfig        = bus.DefaultBatcherConfig
	NewMemoryDLQStore           = bus.NewMemoryDLQStore
	NewGormDLQStore             = bus.NewGormDLQStore
)

// ============================================================================
// ReliableBus 方法速览 - 通过 ReliableBus 实例调用
// ============================================================================

// - Publish(ctx, subject, payload) error: 发布消息（熔断检查 + 重试 + 死信落盘）
// - Subscribe(ctx, subject, group, handler) (Subscription, error): 以消费组身份订阅主题
// - Replay(ctx, messageIDs...) (*ReplayResult, error): 重放死信消息（无参数时重放全部）
// - GetMetrics() *BusMetricsSnapshot: 获取总线指标快照
// - Breaker() *CircuitBreaker: 获取熔断器
// - Close() error: 关闭总线
