/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-17 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\redis_broker.go
 * @Description: Redis Streams Broker - 消费组投递与超时重claim
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/redis/go-redis/v9"
)

// RedisBrokerConfig Redis Streams Broker配置
type RedisBrokerConfig struct {
	StreamPrefix  string               // 流名称前缀，默认 "mudhub:stream:"
	ConsumerName  string               // 消费者名称（同组内唯一，通常为节点ID）
	MaxStreamLen  int64                // 流长度上限（近似裁剪），0为不裁剪
	ReadCount     int64                // 单次读取条数
	BlockTimeout  time.Duration        // XReadGroup阻塞超时
	ClaimMinIdle  time.Duration        // 未确认消息重claim的最小空闲时长
	ClaimInterval time.Duration        // 重claim扫描间隔
	Logger        middleware.MudLogger // 日志器
}

// DefaultRedisBrokerConfig 默认Redis Broker配置
func DefaultRedisBrokerConfig(consumerName string) *RedisBrokerConfig {
	return &RedisBrokerConfig{
		StreamPrefix:  "mudhub:stream:",
		ConsumerName:  consumerName,
		MaxStreamLen:  100000,
		ReadCount:     64,
		BlockTimeout:  5 * time.Second,
		ClaimMinIdle:  time.Minute,
		ClaimInterval: 30 * time.Second,
	}
}

// RedisBroker 基于 Redis Streams 的Broker
// 消费组保证at-least-once；未确认消息空闲超时后被XAutoClaim重新投递
type RedisBroker struct {
	client *redis.Client
	config *RedisBrokerConfig
	logger middleware.MudLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewRedisBroker 创建Redis Streams Broker
func NewRedisBroker(client *redis.Client, config *RedisBrokerConfig) *RedisBroker {
	if config == nil {
		config = DefaultRedisBrokerConfig("mudhub-consumer")
	}
	config.StreamPrefix = mathx.IF(config.StreamPrefix == "", "mudhub:stream:", config.StreamPrefix)
	config.ConsumerName = mathx.IF(config.ConsumerName == "", "mudhub-consumer", config.ConsumerName)
	if config.ReadCount <= 0 {
		config.ReadCount = 64
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = 5 * time.Second
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = time.Minute
	}
	if config.ClaimInterval <= 0 {
		config.ClaimInterval = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBroker{
		client: client,
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// streamKey 主题对应的流名称
func (b *RedisBroker) streamKey(subject string) string {
	return b.config.StreamPrefix + subject
}

// Publish 发布消息到主题流
func (b *RedisBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	if b.closed.Load() {
		return models.ErrBusClosed
	}

	args := &redis.XAddArgs{
		Stream: b.streamKey(subject),
		Values: map[string]interface{}{"payload": payload},
	}
	if b.config.MaxStreamLen > 0 {
		args.MaxLen = b.config.MaxStreamLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return errorx.NewError(models.ErrTypeBrokerPublishFailed, err.Error())
	}
	return nil
}

// Subscribe 以消费组身份订阅主题
// 消费组不存在时自动创建；后台同时运行读取循环与重claim循环
func (b *RedisBroker) Subscribe(ctx context.Context, subject, group string, handler DeliveryHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, models.ErrBusClosed
	}

	stream := b.streamKey(subject)

	// 创建消费组（流不存在时一并创建），已存在时忽略
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(b.ctx)
	sub := &redisSubscription{
		broker:  b,
		subject: subject,
		stream:  stream,
		group:   group,
		handler: handler,
		ctx:     subCtx,
		cancel:  cancel,
	}

	b.wg.Add(2)
	go sub.readLoop()
	go sub.claimLoop()

	return sub, nil
}

// Close 关闭Broker，等待所有订阅循环退出
func (b *RedisBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	b.wg.Wait()
	return nil
}

// redisSubscription Redis流订阅
type redisSubscription struct {
	broker  *RedisBroker
	subject string
	stream  string
	group   string
	handler DeliveryHandler
	ctx     context.Context
	cancel  context.CancelFunc
}

// readLoop 读取循环：阻塞读取新消息并投递
func (s *redisSubscription) readLoop() {
	defer s.broker.wg.Done()

	bo := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		streams, err := s.broker.client.XReadGroup(s.ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.broker.config.ConsumerName,
			Streams:  []string{s.stream, ">"},
			Count:    s.broker.config.ReadCount,
			Block:    s.broker.config.BlockTimeout,
		}).Result()

		if err != nil {
			if err == redis.Nil || s.ctx.Err() != nil {
				bo.Reset()
				continue
			}
			s.broker.logger.WarnKV("读取消息流失败",
				"stream", s.stream,
				"group", s.group,
				"error", err,
			)
			select {
			case <-time.After(bo.Duration()):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		bo.Reset()

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.dispatch(msg)
			}
		}
	}
}

// claimLoop 重claim循环：接管空闲超时的未确认消息
func (s *redisSubscription) claimLoop() {
	defer s.broker.wg.Done()

	ticker := time.NewTicker(s.broker.config.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.claimStale()
		}
	}
}

// claimStale 扫描并接管空闲超时的未确认消息
func (s *redisSubscription) claimStale() {
	start := "0-0"
	for {
		msgs, next, err := s.broker.client.XAutoClaim(s.ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.broker.config.ConsumerName,
			MinIdle:  s.broker.config.ClaimMinIdle,
			Start:    start,
			Count:    s.broker.config.ReadCount,
		}).Result()
		if err != nil {
			if s.ctx.Err() == nil {
				s.broker.logger.WarnKV("重claim失败", "stream", s.stream, "error", err)
			}
			return
		}

		for _, msg := range msgs {
			s.dispatch(msg)
		}

		// "0-0"表示扫描完成
		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

// dispatch 构造投递对象并调用handler
// Nak不做确认，消息留在待确认列表等待空闲超时后重claim
func (s *redisSubscription) dispatch(msg redis.XMessage) {
	payload, _ := msg.Values["payload"].(string)

	delivery := &Delivery{
		ID:      msg.ID,
		Subject: s.subject,
		Payload: []byte(payload),
		ackFn: func() error {
			return s.broker.client.XAck(s.ctx, s.stream, s.group, msg.ID).Err()
		},
		nakFn: func() error { return nil },
	}
	s.handler(s.ctx, delivery)
}

// Unsubscribe 取消订阅
func (s *redisSubscription) Unsubscribe() error {
	s.cancel()
	return nil
}
