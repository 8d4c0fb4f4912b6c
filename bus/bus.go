/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\bus.go
 * @Description: 消息总线可靠性封装 - 熔断、重试、批处理与死信
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// Config 总线配置
type Config struct {
	Broker      Broker                // 底层Broker（必填）
	Breaker     *CircuitBreakerConfig // 熔断器配置
	Batch       *BatcherConfig        // 批处理配置
	DLQ         DLQStore              // 死信存储（nil时使用内存存储）
	RetryBudget int                   // 单条消息发布尝试次数上限
	RetryMin    time.Duration         // 重试退避最小间隔
	RetryMax    time.Duration         // 重试退避最大间隔
	MaxPublish  int                   // 并发发布上限估计值（利用率指标分母）
	Logger      middleware.MudLogger  // 日志器
}

// DefaultConfig 默认总线配置
func DefaultConfig(broker Broker) *Config {
	return &Config{
		Broker:      broker,
		Breaker:     DefaultCircuitBreakerConfig(),
		Batch:       DefaultBatcherConfig(),
		RetryBudget: 3,
		RetryMin:    100 * time.Millisecond,
		RetryMax:    2 * time.Second,
		MaxPublish:  64,
	}
}

// ReliableBus 消息总线可靠性封装
// 发布经过熔断器与重试，重试耗尽进入死信队列；订阅统计确认指标
type ReliableBus struct {
	config  *Config
	broker  Broker
	breaker *CircuitBreaker
	dlq     DLQStore
	metrics *busMetrics
	batcher *batcher
	logger  middleware.MudLogger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewReliableBus 创建总线
func NewReliableBus(config *Config) *ReliableBus {
	if config.RetryBudget <= 0 {
		config.RetryBudget = 3
	}
	if config.RetryMin <= 0 {
		config.RetryMin = 100 * time.Millisecond
	}
	if config.RetryMax <= 0 {
		config.RetryMax = 2 * time.Second
	}
	if config.MaxPublish <= 0 {
		config.MaxPublish = 64
	}
	if config.DLQ == nil {
		config.DLQ = NewMemoryDLQStore()
	}
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &ReliableBus{
		config:  config,
		broker:  config.Broker,
		breaker: NewCircuitBreaker(config.Breaker),
		dlq:     config.DLQ,
		metrics: &busMetrics{maxPublishers: int64(config.MaxPublish)},
		logger:  config.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if config.Batch != nil && config.Batch.Enabled {
		b.batcher = newBatcher(config.Batch, b.flushBatch)
		b.batcher.start(ctx)
	}

	return b
}

// Publish 发布消息
// 熔断打开时快速失败；批处理启用时入队即返回，投递与死信异步完成
func (b *ReliableBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if b.closed.Load() {
		return models.ErrBusClosed
	}

	if err := b.breaker.Allow(); err != nil {
		b.metrics.observePublish(err, 0)
		return err
	}

	entry := &batchEntry{
		id:      uuid.NewString(),
		subject: subject,
		payload: payload,
	}

	if b.batcher != nil {
		if err := b.batcher.enqueue(entry); err != nil {
			b.metrics.observePublish(err, 0)
			return err
		}
		return nil
	}

	return b.publishOne(ctx, entry)
}

// publishOne 同步发布单条消息：重试直到成功或预算耗尽，耗尽后进入死信
func (b *ReliableBus) publishOne(ctx context.Context, entry *batchEntry) error {
	b.metrics.busyPublishers.Add(1)
	defer b.metrics.busyPublishers.Add(-1)

	start := time.Now()
	lastErr := b.attemptPublish(ctx, entry, b.config.RetryBudget, true)
	if lastErr == nil {
		b.metrics.observePublish(nil, time.Since(start))
		return nil
	}

	b.deadLetter(ctx, entry, lastErr)
	err := errorx.NewError(models.ErrTypeDeadLettered, entry.id)
	b.metrics.observePublish(err, time.Since(start))
	return err
}

// attemptPublish 按退避策略尝试发布，最多attempts次
// recordBreaker控制每次结果是否计入熔断器（批处理刷出整体只计一次）
func (b *ReliableBus) attemptPublish(ctx context.Context, entry *batchEntry, attempts int, recordBreaker bool) error {
	bo := &backoff.Backoff{
		Min:    b.config.RetryMin,
		Max:    b.config.RetryMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(bo.Duration()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := b.broker.Publish(ctx, entry.subject, entry.payload)
		if err == nil {
			if recordBreaker {
				b.breaker.RecordSuccess()
			}
			return nil
		}
		lastErr = err
		if recordBreaker {
			b.breaker.RecordFailure()
			// 熔断已打开时放弃剩余重试，快速进入死信
			if b.breaker.State() == models.CircuitStateOpen {
				break
			}
		}
	}
	return lastErr
}

// flushBatch 批处理刷出
// 刷出失败整体只计一次熔断失败事件，失败消息逐条重试后死信
func (b *ReliableBus) flushBatch(entries []*batchEntry) {
	ctx, cancel := context.WithTimeout(b.ctx, 30*time.Second)
	defer cancel()

	b.metrics.busyPublishers.Add(1)
	defer b.metrics.busyPublishers.Add(-1)

	var failed []*batchEntry
	for _, entry := range entries {
		start := time.Now()
		if err := b.broker.Publish(ctx, entry.subject, entry.payload); err != nil {
			failed = append(failed, entry)
		} else {
			b.metrics.observePublish(nil, time.Since(start))
		}
	}

	if len(failed) == 0 {
		b.breaker.RecordSuccess()
		return
	}
	b.breaker.RecordFailure()

	// 逐条重试，不再额外累计熔断事件
	for _, entry := range failed {
		start := time.Now()
		err := b.attemptPublish(ctx, entry, b.config.RetryBudget-1, false)
		if err == nil {
			b.metrics.observePublish(nil, time.Since(start))
			continue
		}
		b.deadLetter(ctx, entry, err)
		b.metrics.observePublish(errorx.NewError(models.ErrTypeDeadLettered, entry.id), time.Since(start))
	}
}

// deadLetter 消息落入死信队列
func (b *ReliableBus) deadLetter(ctx context.Context, entry *batchEntry, cause error) {
	b.metrics.deadLettered.Add(1)

	msg := &models.DLQMessage{
		MessageID:  entry.id,
		Subject:    entry.subject,
		Payload:    entry.payload,
		ErrorText:  cause.Error(),
		RetryCount: b.config.RetryBudget,
		Status:     models.DLQStatusPending,
		DeadAt:     time.Now(),
	}
	if err := b.dlq.Save(ctx, msg); err != nil {
		b.logger.ErrorKV("死信落盘失败",
			"message_id", entry.id,
			"subject", entry.subject,
			"error", err,
		)
		return
	}

	b.logger.WarnKV("消息进入死信队列",
		"message_id", entry.id,
		"subject", entry.subject,
		"cause", cause.Error(),
	)
}

// SubscribeHandler 订阅处理函数
// 返回nil自动Ack，返回错误自动Nak；handler内部也可自行Ack/Nak
type SubscribeHandler func(ctx context.Context, delivery *Delivery) error

// Subscribe 以消费组身份订阅主题
// 未确认消息的重投由Broker负责，确认结果计入总线指标
func (b *ReliableBus) Subscribe(ctx context.Context, subject, group string, handler SubscribeHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, models.ErrBusClosed
	}

	return b.broker.Subscribe(ctx, subject, group, func(dCtx context.Context, raw *Delivery) {
		delivery := b.instrument(raw)

		if err := handler(dCtx, delivery); err != nil {
			_ = delivery.Nak()
			return
		}
		_ = delivery.Ack()
	})
}

// instrument 包装投递对象，确认结果计入指标
func (b *ReliableBus) instrument(raw *Delivery) *Delivery {
	return &Delivery{
		ID:      raw.ID,
		Subject: raw.Subject,
		Payload: raw.Payload,
		ackFn: func() error {
			if err := raw.Ack(); err != nil {
				b.metrics.ackFailure.Add(1)
				return err
			}
			b.metrics.ackSuccess.Add(1)
			return nil
		},
		nakFn: func() error {
			b.metrics.nakTotal.Add(1)
			return raw.Nak()
		},
	}
}

// Replay 重放死信消息
// 不带参数时重放全部待重放消息；逐条上报成败，成功的从待重放集合移除
func (b *ReliableBus) Replay(ctx context.Context, messageIDs ...string) (*models.ReplayResult, error) {
	if b.closed.Load() {
		return nil, models.ErrBusClosed
	}

	var msgs []*models.DLQMessage
	if len(messageIDs) == 0 {
		var err error
		msgs, err = b.dlq.ListPending(ctx, 0)
		if err != nil {
			return nil, err
		}
	} else {
		for _, id := range messageIDs {
			msg, err := b.dlq.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}

	result := &models.ReplayResult{Total: len(msgs)}
	var replayed []string
	for _, msg := range msgs {
		if err := b.broker.Publish(ctx, msg.Subject, msg.Payload); err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, msg.MessageID)
			b.logger.WarnKV("死信重放失败", "message_id", msg.MessageID, "error", err)
			continue
		}
		result.Succeeded++
		replayed = append(replayed, msg.MessageID)
	}

	if len(replayed) > 0 {
		if err := b.dlq.MarkReplayed(ctx, replayed); err != nil {
			return result, err
		}
	}

	b.logger.InfoKV("死信重放完成",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

// GetMetrics 获取总线指标快照
func (b *ReliableBus) GetMetrics() *MetricsSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dlqSize, err := b.dlq.PendingCount(ctx)
	if err != nil {
		dlqSize = -1
	}
	return b.metrics.snapshot(b.breaker.State(), b.breaker.HealthScore(), dlqSize)
}

// Breaker 暴露熔断器供路由层降级判断
func (b *ReliableBus) Breaker() *CircuitBreaker {
	return b.breaker
}

// Close 关闭总线：停止批处理收尾刷出，随后关闭Broker
func (b *ReliableBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	if b.batcher != nil {
		b.batcher.stop()
	}
	b.cancel()
	return b.broker.Close()
}
