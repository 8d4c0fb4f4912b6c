/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\connection_test.go
 * @Description: 连接模型测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection(t *testing.T) {
	conn := NewConnection("conn-1", "player-1").
		WithClientIP("10.0.0.1").
		WithSessionID("sess-1").
		WithNodeID("node-a").
		WithSendChan(16)

	assert.Equal(t, "conn-1", conn.ID)
	assert.Equal(t, "player-1", conn.PlayerID)
	assert.Equal(t, "10.0.0.1", conn.ClientIP)
	assert.Equal(t, "sess-1", conn.SessionID)
	assert.Equal(t, "node-a", conn.NodeID)
	assert.Equal(t, ConnectionTypeWebSocket, conn.ConnectionType)
	require.NotNil(t, conn.SendChan)
	assert.Equal(t, 16, cap(conn.SendChan))
	assert.False(t, conn.IsClosed())
}

func TestConnection_IsHealthy(t *testing.T) {
	conn := NewConnection("conn-1", "player-1")

	t.Run("最近心跳视为健康", func(t *testing.T) {
		conn.TouchHeartbeat()
		assert.True(t, conn.IsHealthy(30*time.Second))
	})

	t.Run("心跳超时视为不健康", func(t *testing.T) {
		conn.SetLastHeartbeat(time.Now().Add(-2 * time.Minute))
		assert.False(t, conn.IsHealthy(30*time.Second))
	})

	t.Run("已关闭连接不健康", func(t *testing.T) {
		conn.TouchHeartbeat()
		conn.Close()
		assert.False(t, conn.IsHealthy(30*time.Second))
	})
}

// TestConnection_ConcurrentHeartbeat 读泵刷新心跳与健康检查并发执行的安全性
func TestConnection_ConcurrentHeartbeat(t *testing.T) {
	conn := NewConnection("conn-1", "player-1")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				conn.TouchHeartbeat()
				conn.Touch()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = conn.IsHealthy(30 * time.Second)
				_ = conn.LastHeartbeat()
				_ = conn.LastSeen()
			}
		}()
	}
	wg.Wait()

	assert.True(t, conn.IsHealthy(30*time.Second))
	assert.False(t, conn.LastHeartbeat().IsZero())
}

// TestConnection_CloseIdempotent 测试重复关闭不会panic
func TestConnection_CloseIdempotent(t *testing.T) {
	conn := NewConnection("conn-1", "player-1").WithSendChan(4)

	conn.Close()
	assert.True(t, conn.IsClosed())

	// 第二次关闭应当安全无副作用
	assert.NotPanics(t, func() {
		conn.Close()
	})
}

// TestConnection_CloseConcurrent 测试并发关闭的安全性
func TestConnection_CloseConcurrent(t *testing.T) {
	conn := NewConnection("conn-1", "player-1").WithSendChan(4)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close()
		}()
	}
	wg.Wait()

	assert.True(t, conn.IsClosed())
}

func TestSession_AttachDetach(t *testing.T) {
	sess := &Session{
		ID:       "sess-1",
		PlayerID: "player-1",
		Valid:    true,
	}

	sess.AttachConnection("c1")
	sess.AttachConnection("c2")
	sess.AttachConnection("c1") // 重复附加不应产生重复项
	assert.True(t, sess.HasConnection("c1"))
	assert.True(t, sess.HasConnection("c2"))

	remaining := sess.DetachConnection("c1")
	assert.Equal(t, 1, remaining)
	assert.False(t, sess.HasConnection("c1"))

	remaining = sess.DetachConnection("c2")
	assert.Equal(t, 0, remaining)

	// 移除不存在的连接是幂等操作
	remaining = sess.DetachConnection("missing")
	assert.Equal(t, 0, remaining)
}
