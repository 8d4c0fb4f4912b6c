/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\broker.go
 * @Description: 消息Broker抽象与内存实现
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// Delivery 一次消息投递
// 订阅方必须显式 Ack 或 Nak，重复调用为空操作
type Delivery struct {
	ID      string // 消息ID（Broker分配）
	Subject string // 主题
	Payload []byte // 消息载荷

	settled atomic.Bool
	ackFn   func() error
	nakFn   func() error
}

// Ack 确认消息处理成功
func (d *Delivery) Ack() error {
	if !d.settled.CompareAndSwap(false, true) {
		return nil
	}
	if d.ackFn == nil {
		return nil
	}
	return d.ackFn()
}

// Nak 拒绝消息，交由Broker重投
func (d *Delivery) Nak() error {
	if !d.settled.CompareAndSwap(false, true) {
		return nil
	}
	if d.nakFn == nil {
		return nil
	}
	return d.nakFn()
}

// DeliveryHandler 投递处理函数
type DeliveryHandler func(ctx context.Context, delivery *Delivery)

// Subscription 订阅句柄
type Subscription interface {
	// Unsubscribe 取消订阅并停止投递
	Unsubscribe() error
}

// Broker 消息Broker接口（at-least-once投递，按主题路由，手动确认）
type Broker interface {
	// Publish 发布消息到主题
	Publish(ctx context.Context, subject string, payload []byte) error

	// Subscribe 以消费组身份订阅主题
	Subscribe(ctx context.Context, subject, group string, handler DeliveryHandler) (Subscription, error)

	// Close 关闭Broker，停止所有订阅
	Close() error
}

// ============================================================================
// 内存Broker实现（单进程部署与测试用）
// ============================================================================

// memoryMessage 内存Broker的消息条目
type memoryMessage struct {
	id      string
	payload []byte
}

// MemoryBroker 进程内Broker
// Nak的消息重新入队，模拟at-least-once重投语义
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySubscription
	seq    atomic.Int64
	closed atomic.Bool
}

// NewMemoryBroker 创建内存Broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[string][]*memorySubscription),
	}
}

// Publish 发布消息到主题
// 没有订阅者时消息直接丢弃（与真实Broker的流持久化不同，仅限单进程场景）
func (b *MemoryBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	if b.closed.Load() {
		return models.ErrBusClosed
	}

	id := strconv.FormatInt(b.seq.Add(1), 10)
	msg := &memoryMessage{id: id, payload: payload}

	b.mu.RLock()
	subs := make([]*memorySubscription, len(b.subs[subject]))
	copy(subs, b.subs[subject])
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.enqueue(msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 以消费组身份订阅主题
// 内存实现不区分消费组，每个订阅独立收到全量消息
func (b *MemoryBroker) Subscribe(ctx context.Context, subject, group string, handler DeliveryHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, models.ErrBusClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		broker:  b,
		subject: subject,
		handler: handler,
		ch:      make(chan *memoryMessage, 256),
		ctx:     subCtx,
		cancel:  cancel,
	}

	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.mu.Unlock()

	go sub.run()
	return sub, nil
}

// Close 关闭Broker，停止所有订阅
func (b *MemoryBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.subs = make(map[string][]*memorySubscription)
	return nil
}

// removeSubscription 从订阅表中摘除
func (b *MemoryBroker) removeSubscription(target *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[target.subject]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[target.subject]) == 0 {
		delete(b.subs, target.subject)
	}
}

// memorySubscription 内存订阅
type memorySubscription struct {
	broker  *MemoryBroker
	subject string
	handler DeliveryHandler
	ch      chan *memoryMessage
	ctx     context.Context
	cancel  context.CancelFunc
}

// enqueue 消息入队，队列满视为发布失败
func (s *memorySubscription) enqueue(msg *memoryMessage) error {
	select {
	case s.ch <- msg:
		return nil
	case <-s.ctx.Done():
		return nil
	default:
		return errorx.NewError(models.ErrTypeBrokerPublishFailed, "subscription buffer full")
	}
}

// run 投递循环
func (s *memorySubscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.ch:
			s.dispatch(msg)
		}
	}
}

// dispatch 投递单条消息，handler panic不终止循环
func (s *memorySubscription) dispatch(msg *memoryMessage) {
	defer syncx.RecoverWithHandler(func(r interface{}) {})

	delivery := &Delivery{
		ID:      msg.id,
		Subject: s.subject,
		Payload: msg.payload,
		ackFn:   func() error { return nil },
		nakFn: func() error {
			// 重新入队模拟Broker重投
			return s.enqueue(msg)
		},
	}
	s.handler(s.ctx, delivery)
}

// Unsubscribe 取消订阅并停止投递
func (s *memorySubscription) Unsubscribe() error {
	s.cancel()
	s.broker.removeSubscription(s)
	return nil
}
