/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-20 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\events\publisher.go
 * @Description: 玩家上下线事件发布订阅 - 基于 Redis PubSub 跨节点广播
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kamalyes/go-cachex"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
)

// Config 事件发布器配置
type Config struct {
	PubSub *cachex.PubSub       // PubSub实例（必填）
	NodeID string               // 本节点ID
	Logger middleware.MudLogger // 日志器
}

// Publisher 玩家上下线事件发布器
// 实现 presence.EventSink：本节点玩家上下线时广播给集群内其他节点，
// 其他节点据此维护全局在线视图（如好友在线列表）
type Publisher struct {
	pubsub *cachex.PubSub
	nodeID string
	logger middleware.MudLogger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPublisher 创建事件发布器
func NewPublisher(config *Config) *Publisher {
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		pubsub: config.PubSub,
		nodeID: config.NodeID,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// PlayerOnline 发布玩家上线事件
func (p *Publisher) PlayerOnline(ctx context.Context, playerID, nodeID string) {
	event := &models.PlayerStatusEvent{
		PlayerID:  playerID,
		Online:    true,
		NodeID:    nodeID,
		Timestamp: time.Now(),
	}
	p.publish(models.EventPlayerOnline, event)
}

// PlayerOffline 发布玩家下线事件
func (p *Publisher) PlayerOffline(ctx context.Context, playerID, nodeID string, lastSeen time.Time) {
	event := &models.PlayerStatusEvent{
		PlayerID:  playerID,
		Online:    false,
		NodeID:    nodeID,
		LastSeen:  lastSeen,
		Timestamp: time.Now(),
	}
	p.publish(models.EventPlayerOffline, event)
}

// publish 发布事件到指定频道
// 发布失败只记录日志，上下线事件属尽力而为的通知
func (p *Publisher) publish(channel string, event *models.PlayerStatusEvent) {
	if p.pubsub == nil {
		p.logger.DebugKV("PubSub未设置，跳过事件发布", "channel", channel)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	if err := p.pubsub.Publish(ctx, channel, event); err != nil {
		if ctx.Err() == context.Canceled || p.ctx.Err() != nil {
			p.logger.DebugKV("发布事件被取消（节点可能正在关闭）",
				"channel", channel,
				"player_id", event.PlayerID,
			)
		} else {
			p.logger.WarnKV("发布事件失败",
				"channel", channel,
				"player_id", event.PlayerID,
				"error", err,
			)
		}
		return
	}

	p.logger.DebugKV("发布玩家状态事件",
		"channel", channel,
		"player_id", event.PlayerID,
		"online", event.Online,
		"node_id", event.NodeID,
	)
}

// SubscribePlayerOnline 订阅玩家上线事件
// 返回取消订阅函数，调用后将停止接收该事件
func (p *Publisher) SubscribePlayerOnline(handler models.PlayerStatusEventHandler) (func() error, error) {
	return p.subscribe([]string{models.EventPlayerOnline}, handler)
}

// SubscribePlayerOffline 订阅玩家下线事件
func (p *Publisher) SubscribePlayerOffline(handler models.PlayerStatusEventHandler) (func() error, error) {
	return p.subscribe([]string{models.EventPlayerOffline}, handler)
}

// SubscribeAllPlayerEvents 订阅全部玩家上下线事件
func (p *Publisher) SubscribeAllPlayerEvents(handler models.PlayerStatusEventHandler) (func() error, error) {
	return p.subscribe([]string{models.EventPlayerOnline, models.EventPlayerOffline}, handler)
}

// subscribe 订阅指定频道并反序列化为玩家状态事件
func (p *Publisher) subscribe(channels []string, handler models.PlayerStatusEventHandler) (func() error, error) {
	if p.pubsub == nil {
		return nil, models.ErrPubSubNotSet
	}

	p.logger.InfoKV("订阅玩家状态事件", "channels", channels)

	subscriber, err := p.pubsub.Subscribe(
		channels,
		func(ctx context.Context, channel string, message string) error {
			var event models.PlayerStatusEvent
			if err := json.Unmarshal([]byte(message), &event); err != nil {
				p.logger.WarnKV("事件反序列化失败",
					"channel", channel,
					"error", err,
					"message", message,
				)
				return err
			}
			return handler(&event)
		},
	)
	if err != nil {
		return nil, err
	}

	return func() error {
		return subscriber.Unsubscribe()
	}, nil
}

// Close 关闭发布器
func (p *Publisher) Close() {
	p.cancel()
}
