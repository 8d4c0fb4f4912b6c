/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-16 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\bus\dlq.go
 * @Description: 死信队列存储抽象与内存实现
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-mudhub/repository"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// DLQStore 死信存储接口
type DLQStore interface {
	// Save 存入死信消息
	Save(ctx context.Context, msg *models.DLQMessage) error

	// Get 按消息ID取出待重放死信
	Get(ctx context.Context, messageID string) (*models.DLQMessage, error)

	// ListPending 按进入死信顺序列出待重放消息
	ListPending(ctx context.Context, limit int) ([]*models.DLQMessage, error)

	// MarkReplayed 标记消息重放成功
	MarkReplayed(ctx context.Context, messageIDs []string) error

	// PendingCount 待重放消息数
	PendingCount(ctx context.Context) (int64, error)
}

// ============================================================================
// 内存实现
// ============================================================================

// MemoryDLQStore 内存死信存储（单进程部署与测试用）
type MemoryDLQStore struct {
	mu       sync.RWMutex
	messages map[string]*models.DLQMessage
	order    []string // 保持进入死信的顺序
}

// NewMemoryDLQStore 创建内存死信存储
func NewMemoryDLQStore() *MemoryDLQStore {
	return &MemoryDLQStore{
		messages: make(map[string]*models.DLQMessage),
	}
}

// Save 存入死信消息
func (s *MemoryDLQStore) Save(ctx context.Context, msg *models.DLQMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.MessageID]; !exists {
		s.order = append(s.order, msg.MessageID)
	}
	s.messages[msg.MessageID] = msg
	return nil
}

// Get 按消息ID取出待重放死信
func (s *MemoryDLQStore) Get(ctx context.Context, messageID string) (*models.DLQMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return nil, errorx.NewError(models.ErrTypeDLQMessageNotFound, messageID)
	}
	return msg, nil
}

// ListPending 按进入死信顺序列出待重放消息
func (s *MemoryDLQStore) ListPending(ctx context.Context, limit int) ([]*models.DLQMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.DLQMessage
	for _, id := range s.order {
		msg := s.messages[id]
		if msg == nil || msg.Status != models.DLQStatusPending {
			continue
		}
		result = append(result, msg)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MarkReplayed 标记消息重放成功
func (s *MemoryDLQStore) MarkReplayed(ctx context.Context, messageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range messageIDs {
		if msg, ok := s.messages[id]; ok {
			msg.Status = models.DLQStatusReplayed
			msg.ReplayedAt = &now
		}
	}
	return nil
}

// PendingCount 待重放消息数
func (s *MemoryDLQStore) PendingCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, msg := range s.messages {
		if msg.Status == models.DLQStatusPending {
			count++
		}
	}
	return count, nil
}

// ============================================================================
// GORM仓库适配
// ============================================================================

// GormDLQStore 持久化死信存储，适配 repository.DLQRepository
type GormDLQStore struct {
	repo repository.DLQRepository
}

// NewGormDLQStore 基于GORM仓库创建死信存储
func NewGormDLQStore(repo repository.DLQRepository) *GormDLQStore {
	return &GormDLQStore{repo: repo}
}

// Save 存入死信消息
func (s *GormDLQStore) Save(ctx context.Context, msg *models.DLQMessage) error {
	return s.repo.Save(ctx, msg)
}

// Get 按消息ID取出待重放死信
func (s *GormDLQStore) Get(ctx context.Context, messageID string) (*models.DLQMessage, error) {
	return s.repo.GetByMessageID(ctx, messageID)
}

// ListPending 按进入死信顺序列出待重放消息
func (s *GormDLQStore) ListPending(ctx context.Context, limit int) ([]*models.DLQMessage, error) {
	return s.repo.Query(ctx, &repository.DLQFilter{Limit: limit})
}

// MarkReplayed 标记消息重放成功
func (s *GormDLQStore) MarkReplayed(ctx context.Context, messageIDs []string) error {
	return s.repo.MarkReplayed(ctx, messageIDs)
}

// PendingCount 待重放消息数
func (s *GormDLQStore) PendingCount(ctx context.Context) (int64, error) {
	return s.repo.CountPending(ctx)
}
