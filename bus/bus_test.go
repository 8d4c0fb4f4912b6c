/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\bus_test.go
 * @Description: 消息总线可靠性封装测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failableBroker 可注入发布失败的Broker，用于熔断测试
type failableBroker struct {
	*MemoryBroker
	failPublish  atomic.Bool
	publishCalls atomic.Int64
}

func newFailableBroker() *failableBroker {
	return &failableBroker{MemoryBroker: NewMemoryBroker()}
}

func (f *failableBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	f.publishCalls.Add(1)
	if f.failPublish.Load() {
		return errorx.NewError(models.ErrTypeBrokerPublishFailed, "injected failure")
	}
	return f.MemoryBroker.Publish(ctx, subject, payload)
}

// newTestBus 创建测试总线（重试间隔极短，冷却期长以便断言fail-fast）
func newTestBus(broker Broker) *ReliableBus {
	return NewReliableBus(&Config{
		Broker: broker,
		Breaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			MinHealthScore:   1,
			HealthDecay:      0.8,
			CooldownMin:      time.Minute,
			CooldownMax:      time.Minute,
		},
		RetryBudget: 3,
		RetryMin:    time.Millisecond,
		RetryMax:    2 * time.Millisecond,
		Logger:      middleware.NoOpLoggerInstance,
	})
}

func TestReliableBus_PublishSuccess(t *testing.T) {
	broker := newFailableBroker()
	b := newTestBus(broker)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "mud.system", []byte("hello")))

	snap := b.GetMetrics()
	assert.Equal(t, int64(1), snap.PublishTotal)
	assert.Equal(t, int64(0), snap.PublishErrors)
	assert.Equal(t, models.CircuitStateClosed, snap.CircuitState)
}

// TestReliableBus_DeadLetterAfterRetries 测试重试耗尽后进入死信
func TestReliableBus_DeadLetterAfterRetries(t *testing.T) {
	broker := newFailableBroker()
	broker.failPublish.Store(true)
	b := newTestBus(broker)
	defer b.Close()

	ctx := context.Background()
	err := b.Publish(ctx, "mud.room.foyer", []byte("doomed"))
	require.Error(t, err)
	assert.False(t, models.IsCircuitOpenError(err))

	// 重试预算3次全部用掉
	assert.Equal(t, int64(3), broker.publishCalls.Load())

	snap := b.GetMetrics()
	assert.Equal(t, int64(1), snap.DeadLettered)
	assert.Equal(t, int64(1), snap.DLQSize)
}

// TestReliableBus_CircuitOpensAndFailsFast 测试连续失败熔断后快速失败
func TestReliableBus_CircuitOpensAndFailsFast(t *testing.T) {
	broker := newFailableBroker()
	broker.failPublish.Store(true)
	b := newTestBus(broker)
	defer b.Close()

	ctx := context.Background()

	// 第一次发布：3次尝试失败（计数3），死信
	require.Error(t, b.Publish(ctx, "mud.system", []byte("m1")))
	assert.Equal(t, models.CircuitStateClosed, b.Breaker().State())

	// 第二次发布：第2次尝试达到5次连续失败，熔断并放弃剩余重试
	require.Error(t, b.Publish(ctx, "mud.system", []byte("m2")))
	assert.Equal(t, models.CircuitStateOpen, b.Breaker().State())
	assert.Equal(t, int64(5), broker.publishCalls.Load())

	// 熔断中快速失败，不触碰Broker
	err := b.Publish(ctx, "mud.system", []byte("m3"))
	require.Error(t, err)
	assert.True(t, models.IsCircuitOpenError(err))
	assert.Equal(t, int64(5), broker.publishCalls.Load())
}

// TestReliableBus_HalfOpenRecovery 测试冷却后探测成功恢复
func TestReliableBus_HalfOpenRecovery(t *testing.T) {
	broker := newFailableBroker()
	broker.failPublish.Store(true)
	b := NewReliableBus(&Config{
		Broker: broker,
		Breaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			MinHealthScore:   1,
			HealthDecay:      0.8,
			CooldownMin:      20 * time.Millisecond,
			CooldownMax:      20 * time.Millisecond,
		},
		RetryBudget: 3,
		RetryMin:    time.Millisecond,
		RetryMax:    2 * time.Millisecond,
		Logger:      middleware.NoOpLoggerInstance,
	})
	defer b.Close()

	ctx := context.Background()
	require.Error(t, b.Publish(ctx, "mud.system", []byte("m1")))
	require.Error(t, b.Publish(ctx, "mud.system", []byte("m2")))
	require.Equal(t, models.CircuitStateOpen, b.Breaker().State())

	// 恢复Broker并等待冷却期结束
	broker.failPublish.Store(false)
	time.Sleep(30 * time.Millisecond)

	// 半开探测成功，单次即恢复关闭
	require.NoError(t, b.Publish(ctx, "mud.system", []byte("probe")))
	assert.Equal(t, models.CircuitStateClosed, b.Breaker().State())
}

// TestReliableBus_ReplayDLQ 测试死信重放回路
func TestReliableBus_ReplayDLQ(t *testing.T) {
	broker := newFailableBroker()
	broker.failPublish.Store(true)
	b := newTestBus(broker)
	defer b.Close()

	ctx := context.Background()
	require.Error(t, b.Publish(ctx, "mud.room.foyer", []byte("lost")))

	pending, err := b.dlq.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Broker恢复后重放，重放不经过熔断器
	broker.failPublish.Store(false)
	result, err := b.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	// 重放成功后从待重放集合移除
	pending, err = b.dlq.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int64(0), b.GetMetrics().DLQSize)
}

func TestReliableBus_ReplayUnknownMessage(t *testing.T) {
	b := newTestBus(newFailableBroker())
	defer b.Close()

	_, err := b.Replay(context.Background(), "no-such-id")
	assert.Error(t, err)
}

// TestReliableBus_SubscribeAckNak 测试订阅确认指标
func TestReliableBus_SubscribeAckNak(t *testing.T) {
	broker := newFailableBroker()
	b := newTestBus(broker)
	defer b.Close()

	ctx := context.Background()
	handled := make(chan string, 10)
	var failFirst atomic.Bool
	failFirst.Store(true)

	_, err := b.Subscribe(ctx, "mud.room.foyer", "workers", func(dCtx context.Context, d *Delivery) error {
		// 第一次投递Nak，Broker重投后Ack
		if failFirst.CompareAndSwap(true, false) {
			return errorx.NewError(models.ErrTypeBrokerPublishFailed, "transient handler error")
		}
		handled <- string(d.Payload)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "mud.room.foyer", []byte("event")))

	select {
	case payload := <-handled:
		assert.Equal(t, "event", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("消息未在预期时间内完成重投处理")
	}

	// 等待指标落账
	assert.Eventually(t, func() bool {
		snap := b.GetMetrics()
		return snap.AckSuccess == 1 && snap.NakTotal == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestReliableBus_BatchFlush 测试批处理聚合刷出
func TestReliableBus_BatchFlush(t *testing.T) {
	broker := newFailableBroker()
	b := NewReliableBus(&Config{
		Broker:  broker,
		Breaker: DefaultCircuitBreakerConfig(),
		Batch: &BatcherConfig{
			Enabled:       true,
			MaxSize:       4,
			FlushInterval: 20 * time.Millisecond,
			BufferSize:    64,
		},
		RetryBudget: 3,
		RetryMin:    time.Millisecond,
		RetryMax:    2 * time.Millisecond,
		Logger:      middleware.NoOpLoggerInstance,
	})
	defer b.Close()

	ctx := context.Background()

	// 入队即返回
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Publish(ctx, "mud.system", []byte("batched")))
	}

	// 达到批大小后刷出
	assert.Eventually(t, func() bool {
		return broker.publishCalls.Load() == 4
	}, 2*time.Second, 10*time.Millisecond)
}

// TestReliableBus_BatchFlushFailureCountsOnce 批次刷出失败只计一次熔断事件
func TestReliableBus_BatchFlushFailureCountsOnce(t *testing.T) {
	broker := newFailableBroker()
	broker.failPublish.Store(true)
	b := NewReliableBus(&Config{
		Broker: broker,
		Breaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			MinHealthScore:   1,
			HealthDecay:      0.8,
			CooldownMin:      time.Minute,
			CooldownMax:      time.Minute,
		},
		Batch: &BatcherConfig{
			Enabled:       true,
			MaxSize:       4,
			FlushInterval: 10 * time.Millisecond,
			BufferSize:    64,
		},
		RetryBudget: 3,
		RetryMin:    time.Millisecond,
		RetryMax:    2 * time.Millisecond,
		Logger:      middleware.NoOpLoggerInstance,
	})
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Publish(ctx, "mud.system", []byte("batched")))
	}

	// 刷出失败：批次整体只计1次熔断失败，失败消息逐条重试后死信
	assert.Eventually(t, func() bool {
		return b.GetMetrics().DLQSize == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.CircuitStateClosed, b.Breaker().State())
}

func TestReliableBus_ClosedBusRejectsOperations(t *testing.T) {
	b := newTestBus(newFailableBroker())
	require.NoError(t, b.Close())

	ctx := context.Background()
	assert.Error(t, b.Publish(ctx, "mud.system", []byte("late")))

	_, err := b.Subscribe(ctx, "mud.system", "workers", func(context.Context, *Delivery) error { return nil })
	assert.Error(t, err)

	// 重复关闭为空操作
	assert.NoError(t, b.Close())
}
