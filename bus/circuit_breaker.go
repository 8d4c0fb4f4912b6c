/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\circuit_breaker.go
 * @Description: 发布熔断器 - 连续失败或健康分过低时快速失败
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/kamalyes/go-mudhub/models"
)

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	FailureThreshold int           // 连续失败阈值，达到后熔断
	SuccessThreshold int           // 半开状态下连续成功阈值，达到后恢复（默认1：单次探测成功即恢复）
	MinHealthScore   float64       // 健康分下限，低于此值熔断
	HealthDecay      float64       // 健康分衰减系数 (0,1)，越大历史权重越高
	CooldownMin      time.Duration // 熔断冷却最小时长
	CooldownMax      time.Duration // 熔断冷却最大时长（重复熔断指数退避）
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		MinHealthScore:   30,
		HealthDecay:      0.8,
		CooldownMin:      1 * time.Second,
		CooldownMax:      30 * time.Second,
	}
}

// CircuitBreaker 发布熔断器
// 两个独立的熔断条件：连续失败达到阈值，或衰减健康分跌破下限；
// 熔断后经冷却期转半开放行探测，重复熔断冷却时间指数增长
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu           sync.RWMutex
	state        models.CircuitState
	failureCount int     // 连续失败计数
	successCount int     // 半开状态下连续成功计数
	healthScore  float64 // 0-100 衰减成功均值
	lastFailTime time.Time
	cooldown     time.Duration // 当前熔断冷却时长
	backoff      *backoff.Backoff
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.HealthDecay <= 0 || config.HealthDecay >= 1 {
		config.HealthDecay = 0.8
	}

	return &CircuitBreaker{
		config:      config,
		state:       models.CircuitStateClosed,
		healthScore: 100,
		backoff: &backoff.Backoff{
			Min:    config.CooldownMin,
			Max:    config.CooldownMax,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Allow 检查当前是否放行请求
// 熔断中返回熔断错误；冷却期结束后自动转半开放行探测
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == models.CircuitStateOpen {
		if time.Since(cb.lastFailTime) >= cb.cooldown {
			cb.state = models.CircuitStateHalfOpen
			cb.successCount = 0
		} else {
			return models.ErrCircuitOpen
		}
	}
	return nil
}

// RecordSuccess 记录一次成功结果
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.updateHealthLocked(true)

	if cb.state == models.CircuitStateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = models.CircuitStateClosed
			cb.successCount = 0
			cb.backoff.Reset()
		}
	}
}

// RecordFailure 记录一次失败结果
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()
	cb.updateHealthLocked(false)

	switch cb.state {
	case models.CircuitStateClosed:
		if cb.failureCount >= cb.config.FailureThreshold ||
			cb.healthScore < cb.config.MinHealthScore {
			cb.tripLocked()
		}
	case models.CircuitStateHalfOpen:
		// 半开探测失败立即回到熔断，冷却时间指数增长
		cb.tripLocked()
	}
}

// tripLocked 进入熔断状态，调用方必须持有写锁
func (cb *CircuitBreaker) tripLocked() {
	cb.state = models.CircuitStateOpen
	cb.successCount = 0
	cb.cooldown = cb.backoff.Duration()
}

// updateHealthLocked 更新衰减健康分，调用方必须持有写锁
func (cb *CircuitBreaker) updateHealthLocked(success bool) {
	outcome := 0.0
	if success {
		outcome = 100.0
	}
	decay := cb.config.HealthDecay
	cb.healthScore = cb.healthScore*decay + outcome*(1-decay)
}

// State 获取当前状态
func (cb *CircuitBreaker) State() models.CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// HealthScore 获取当前健康分 (0-100)
func (cb *CircuitBreaker) HealthScore() float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.healthScore
}
