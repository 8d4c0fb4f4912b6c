/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\metrics.go
 * @Description: 消息总线指标采集
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"sync/atomic"
	"time"

	"github.com/kamalyes/go-mudhub/models"
)

// busMetrics 总线内部计数器
type busMetrics struct {
	publishTotal  atomic.Int64 // 发布总数
	publishErrors atomic.Int64 // 发布失败数（终态失败）
	ackSuccess    atomic.Int64 // 确认成功数
	ackFailure    atomic.Int64 // 确认操作失败数
	nakTotal      atomic.Int64 // 拒绝数
	deadLettered  atomic.Int64 // 进入死信数

	publishLatencySum   atomic.Int64 // 发布耗时累计（纳秒）
	publishLatencyCount atomic.Int64 // 发布耗时采样数

	busyPublishers atomic.Int64 // 正在发布中的协程数
	maxPublishers  int64        // 发布并发上限（利用率分母）
}

// observePublish 记录一次发布结果与耗时
func (m *busMetrics) observePublish(err error, elapsed time.Duration) {
	m.publishTotal.Add(1)
	if err != nil {
		m.publishErrors.Add(1)
	}
	m.publishLatencySum.Add(int64(elapsed))
	m.publishLatencyCount.Add(1)
}

// MetricsSnapshot 总线指标快照
type MetricsSnapshot struct {
	PublishTotal  int64   `json:"publish_total"`  // 发布总数
	PublishErrors int64   `json:"publish_errors"` // 发布失败数
	ErrorRate     float64 `json:"error_rate"`     // 发布错误率 (0-1)

	AckSuccess   int64 `json:"ack_success"`   // 确认成功数
	AckFailure   int64 `json:"ack_failure"`   // 确认操作失败数
	NakTotal     int64 `json:"nak_total"`     // 拒绝数
	DeadLettered int64 `json:"dead_lettered"` // 进入死信数
	DLQSize      int64 `json:"dlq_size"`      // 死信队列当前深度

	CircuitState models.CircuitState `json:"circuit_state"` // 熔断器状态
	HealthScore  float64             `json:"health_score"`  // 健康分 (0-100)

	PoolUtilization   float64       `json:"pool_utilization"`    // 发布并发利用率 (0-1，仅供观察)
	AvgPublishLatency time.Duration `json:"avg_publish_latency"` // 平均发布耗时
}

// snapshot 生成当前指标快照
func (m *busMetrics) snapshot(state models.CircuitState, health float64, dlqSize int64) *MetricsSnapshot {
	total := m.publishTotal.Load()
	errors := m.publishErrors.Load()

	snap := &MetricsSnapshot{
		PublishTotal:  total,
		PublishErrors: errors,
		AckSuccess:    m.ackSuccess.Load(),
		AckFailure:    m.ackFailure.Load(),
		NakTotal:      m.nakTotal.Load(),
		DeadLettered:  m.deadLettered.Load(),
		DLQSize:       dlqSize,
		CircuitState:  state,
		HealthScore:   health,
	}

	if total > 0 {
		snap.ErrorRate = float64(errors) / float64(total)
	}
	if m.maxPublishers > 0 {
		snap.PoolUtilization = float64(m.busyPublishers.Load()) / float64(m.maxPublishers)
	}
	if count := m.publishLatencyCount.Load(); count > 0 {
		snap.AvgPublishLatency = time.Duration(m.publishLatencySum.Load() / count)
	}
	return snap
}
