/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-14 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\rooms\manager_test.go
 * @Description: 房间订阅管理器测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package rooms

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SubscribeUnsubscribe(t *testing.T) {
	m := NewManager()

	m.Subscribe("c1", "foyer")
	m.Subscribe("c2", "foyer")

	subs := m.GetSubscribers("foyer")
	assert.ElementsMatch(t, []string{"c1", "c2"}, subs)
	assert.Equal(t, 2, m.SubscriberCount("foyer"))

	room, ok := m.GetRoom("c1")
	require.True(t, ok)
	assert.Equal(t, "foyer", room)

	m.Unsubscribe("c1")
	assert.ElementsMatch(t, []string{"c2"}, m.GetSubscribers("foyer"))

	_, ok = m.GetRoom("c1")
	assert.False(t, ok)

	// 重复退订为空操作
	assert.NotPanics(t, func() {
		m.Unsubscribe("c1")
	})
}

// TestManager_SingleRoomInvariant 测试连接同时最多属于一个房间
func TestManager_SingleRoomInvariant(t *testing.T) {
	m := NewManager()

	m.Subscribe("c1", "foyer")
	m.Subscribe("c1", "tavern")

	assert.Empty(t, m.GetSubscribers("foyer"))
	assert.ElementsMatch(t, []string{"c1"}, m.GetSubscribers("tavern"))

	room, ok := m.GetRoom("c1")
	require.True(t, ok)
	assert.Equal(t, "tavern", room)
}

func TestManager_Move(t *testing.T) {
	t.Run("正常迁移", func(t *testing.T) {
		m := NewManager()
		m.Subscribe("c1", "foyer")

		require.NoError(t, m.Move("c1", "foyer", "tavern"))
		assert.Empty(t, m.GetSubscribers("foyer"))
		assert.ElementsMatch(t, []string{"c1"}, m.GetSubscribers("tavern"))
	})

	t.Run("来源房间不匹配时报错", func(t *testing.T) {
		m := NewManager()
		m.Subscribe("c1", "foyer")

		err := m.Move("c1", "tavern", "cellar")
		require.Error(t, err)
		// 迁移失败时订阅关系保持不变
		room, _ := m.GetRoom("c1")
		assert.Equal(t, "foyer", room)
	})

	t.Run("未订阅的连接迁移报错", func(t *testing.T) {
		m := NewManager()
		assert.Error(t, m.Move("ghost", "foyer", "tavern"))
	})

	t.Run("目标房间为空报错", func(t *testing.T) {
		m := NewManager()
		m.Subscribe("c1", "foyer")
		assert.Error(t, m.Move("c1", "foyer", ""))
	})
}

// TestManager_MoveAtomicity 并发迁移下连接始终恰好属于一个房间
func TestManager_MoveAtomicity(t *testing.T) {
	m := NewManager()
	m.Subscribe("c1", "room-0")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// 读协程持续校验不变量
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				count := 0
				for r := 0; r <= 20; r++ {
					for _, id := range m.GetSubscribers(fmt.Sprintf("room-%d", r)) {
						if id == "c1" {
							count++
						}
					}
				}
				// 快照跨多次读取，允许0（恰在两次读取间迁移走），但绝不能出现在两个房间
				assert.LessOrEqual(t, count, 1)
			}
		}()
	}

	for r := 0; r < 20; r++ {
		from := fmt.Sprintf("room-%d", r)
		to := fmt.Sprintf("room-%d", r+1)
		require.NoError(t, m.Move("c1", from, to))
	}
	close(stop)
	wg.Wait()

	room, ok := m.GetRoom("c1")
	require.True(t, ok)
	assert.Equal(t, "room-20", room)
}

func TestManager_RemoveConnection(t *testing.T) {
	m := NewManager()
	m.Subscribe("c1", "foyer")
	m.Subscribe("c2", "foyer")

	m.RemoveConnection("c1")
	assert.ElementsMatch(t, []string{"c2"}, m.GetSubscribers("foyer"))

	m.RemoveConnection("c2")
	assert.Empty(t, m.GetSubscribers("foyer"))
	// 空房间被回收
	assert.Equal(t, 0, m.RoomCount())
}
