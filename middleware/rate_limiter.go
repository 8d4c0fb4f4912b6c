/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\middleware\rate_limiter.go
 * @Description: 连接频率限制器 - 限制单IP在滑动窗口内的连接尝试次数
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// RateLimiterConfig 连接频率限制配置
type RateLimiterConfig struct {
	MaxAttempts int           // 窗口内最大连接尝试次数
	Window      time.Duration // 滑动窗口长度

	// 回调函数
	OnLimited func(ctx context.Context, clientIP string, count int64) // 限流触发回调

	// Redis相关（可选，不提供则使用内存计数）
	RedisEnabled bool
	RedisClient  RedisClient                                  // Redis客户端接口
	RedisKeyFunc func(clientIP string, bucket string) string // Redis键生成函数
}

// RedisClient Redis客户端接口
type RedisClient interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// DefaultRateLimiterConfig 默认连接频率限制配置
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxAttempts:  10,
		Window:       time.Minute,
		RedisEnabled: false,
	}
}

// ipCounter 单IP连接尝试记录
// 保存窗口内每次尝试的时间戳，窗口滚过即精确放行；
// 超限后的尝试只保留最近 MaxAttempts+1 条，单IP内存占用有界
type ipCounter struct {
	attempts []time.Time
	mu       sync.Mutex
}

// RateLimiter 连接频率限制器
type RateLimiter struct {
	config *RateLimiterConfig

	// 内存计数器（Redis未启用时使用）
	memoryCounters map[string]*ipCounter
	mu             sync.RWMutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建连接频率限制器
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRateLimiterConfig().MaxAttempts
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimiterConfig().Window
	}

	limiter := &RateLimiter{
		config:         config,
		memoryCounters: make(map[string]*ipCounter),
		stopCh:         make(chan struct{}),
	}

	// 如果使用内存计数器，启动清理协程
	if !config.RedisEnabled {
		go limiter.cleanupMemoryCounters()
	}

	return limiter
}

// Allow 检查指定IP是否允许发起新的连接尝试
// 每次调用计为一次尝试；超限时返回限流错误，调用方不应产生任何连接副作用
func (r *RateLimiter) Allow(ctx context.Context, clientIP string) error {
	var count int64
	var err error

	if r.config.RedisEnabled && r.config.RedisClient != nil {
		count, err = r.checkRedisLimit(ctx, clientIP)
	} else {
		count = r.checkMemoryLimit(clientIP)
	}

	if err != nil {
		// 计数出错时放行，避免影响正常业务
		return nil
	}

	if count > int64(r.config.MaxAttempts) {
		if r.config.OnLimited != nil {
			go r.config.OnLimited(ctx, clientIP, count)
		}
		return errorx.NewError(models.ErrTypeRateLimited, clientIP)
	}

	return nil
}

// checkRedisLimit 使用Redis进行限流检查
func (r *RateLimiter) checkRedisLimit(ctx context.Context, clientIP string) (int64, error) {
	key := r.getRedisKey(clientIP)

	count, err := r.config.RedisClient.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = r.config.RedisClient.Expire(ctx, key, r.config.Window)
	}

	return count, nil
}

// checkMemoryLimit 使用内存进行限流检查
// 精确滑动窗口：剔除窗口外的历史尝试后登记本次尝试，返回窗口内尝试总数
func (r *RateLimiter) checkMemoryLimit(clientIP string) int64 {
	r.mu.Lock()
	counter, exists := r.memoryCounters[clientIP]
	if !exists {
		counter = &ipCounter{}
		r.memoryCounters[clientIP] = counter
	}
	r.mu.Unlock()

	counter.mu.Lock()
	defer counter.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.config.Window)

	kept := counter.attempts[:0]
	for _, at := range counter.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	counter.attempts = append(kept, now)

	// 超限后只保留最近 MaxAttempts+1 条记录
	if keep := r.config.MaxAttempts + 1; len(counter.attempts) > keep {
		counter.attempts = counter.attempts[len(counter.attempts)-keep:]
	}

	return int64(len(counter.attempts))
}

// ResetIP 重置指定IP的限流计数
func (r *RateLimiter) ResetIP(ctx context.Context, clientIP string) error {
	if r.config.RedisEnabled && r.config.RedisClient != nil {
		return r.config.RedisClient.Del(ctx, r.getRedisKey(clientIP))
	}

	r.mu.Lock()
	delete(r.memoryCounters, clientIP)
	r.mu.Unlock()

	return nil
}

// GetAttemptCount 获取指定IP窗口内的当前计数（不增加计数）
func (r *RateLimiter) GetAttemptCount(ctx context.Context, clientIP string) int64 {
	if r.config.RedisEnabled && r.config.RedisClient != nil {
		count, _ := r.config.RedisClient.Get(ctx, r.getRedisKey(clientIP))
		return count
	}

	r.mu.RLock()
	counter, exists := r.memoryCounters[clientIP]
	r.mu.RUnlock()

	if !exists {
		return 0
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()

	cutoff := time.Now().Add(-r.config.Window)
	var count int64
	for _, at := range counter.attempts {
		if at.After(cutoff) {
			count++
		}
	}
	return count
}

// getRedisKey 生成Redis键
func (r *RateLimiter) getRedisKey(clientIP string) string {
	bucket := time.Now().Truncate(r.config.Window).Format("2006-01-02:15:04:05")
	if r.config.RedisKeyFunc != nil {
		return r.config.RedisKeyFunc(clientIP, bucket)
	}
	return fmt.Sprintf("mudhub:rate_limit:%s:%s", clientIP, bucket)
}

// Stop 停止后台清理协程
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// cleanupMemoryCounters 定期清理过期的内存计数器
func (r *RateLimiter) cleanupMemoryCounters() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			cutoff := time.Now().Add(-r.config.Window)
			for ip, counter := range r.memoryCounters {
				counter.mu.Lock()
				idle := len(counter.attempts) == 0 ||
					!counter.attempts[len(counter.attempts)-1].After(cutoff)
				counter.mu.Unlock()
				if idle {
					delete(r.memoryCounters, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}
