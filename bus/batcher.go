/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\batcher.go
 * @Description: 发布批处理器 - 按条数或时间间隔聚合刷出
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/syncx"
)

// BatcherConfig 批处理配置
type BatcherConfig struct {
	Enabled       bool          // 是否启用批处理
	MaxSize       int           // 达到该条数立即刷出
	FlushInterval time.Duration // 定时刷出间隔
	BufferSize    int           // 入队通道容量，满时发布方快速失败
}

// DefaultBatcherConfig 默认批处理配置
func DefaultBatcherConfig() *BatcherConfig {
	return &BatcherConfig{
		Enabled:       false,
		MaxSize:       64,
		FlushInterval: 100 * time.Millisecond,
		BufferSize:    1024,
	}
}

// batchEntry 批处理条目
type batchEntry struct {
	id      string
	subject string
	payload []byte
}

// batcher 发布批处理器
// 缓冲由容量上限约束，刷出失败由flushFn负责重试与死信
type batcher struct {
	config  *BatcherConfig
	flushFn func(entries []*batchEntry)

	ch      chan *batchEntry
	pending []*batchEntry

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// newBatcher 创建批处理器
func newBatcher(config *BatcherConfig, flushFn func(entries []*batchEntry)) *batcher {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultBatcherConfig().MaxSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultBatcherConfig().FlushInterval
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBatcherConfig().BufferSize
	}

	return &batcher{
		config:  config,
		flushFn: flushFn,
		ch:      make(chan *batchEntry, config.BufferSize),
		pending: make([]*batchEntry, 0, config.MaxSize),
		done:    make(chan struct{}),
	}
}

// start 启动聚合循环
func (b *batcher) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel

	go func() {
		defer close(b.done)
		syncx.NewEventLoop(ctx).
			// 新条目入缓冲，达到批大小立即刷出
			OnChannel(b.ch, b.handleEntry).
			// 定时刷出，避免低流量时消息滞留
			OnTicker(b.config.FlushInterval, b.flush).
			OnPanic(func(r interface{}) {}).
			// 退出前刷出剩余条目
			OnShutdown(b.flush).
			Run()
	}()
}

// enqueue 条目入队，缓冲满时快速失败
func (b *batcher) enqueue(entry *batchEntry) error {
	select {
	case b.ch <- entry:
		return nil
	default:
		return errorx.NewError(models.ErrTypeBrokerPublishFailed, "batch buffer full")
	}
}

// handleEntry 处理新入队条目
func (b *batcher) handleEntry(entry *batchEntry) {
	b.pending = append(b.pending, entry)
	if len(b.pending) >= b.config.MaxSize {
		b.flush()
	}
}

// flush 刷出当前缓冲
func (b *batcher) flush() {
	if len(b.pending) == 0 {
		return
	}
	entries := b.pending
	b.pending = make([]*batchEntry, 0, b.config.MaxSize)
	b.flushFn(entries)
}

// stop 停止批处理器并等待收尾刷出完成
func (b *batcher) stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		select {
		case <-b.done:
		case <-time.After(2 * time.Second):
		}
	})
}
