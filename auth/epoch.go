/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-13 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\auth\epoch.go
 * @Description: 认证纪元守卫 - 重启后强制作废旧令牌
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// Epoch 认证纪元
// 每次服务启动生成新纪元值，旧纪元签发的令牌全部失效
type Epoch struct {
	Value     string    `json:"value"`      // 纪元标识
	CreatedAt time.Time `json:"created_at"` // 生成时间
}

// EpochGuard 认证纪元守卫
// Init前的任何校验请求都会失败（fail-closed），防止启动竞态窗口放行旧令牌
type EpochGuard struct {
	mu      sync.RWMutex
	current *Epoch
}

// NewEpochGuard 创建未初始化的纪元守卫
func NewEpochGuard() *EpochGuard {
	return &EpochGuard{}
}

// Init 初始化当前纪元
// value为空时自动生成；仅第一次调用生效，后续调用为空操作并返回首个纪元
func (g *EpochGuard) Init(value string) *Epoch {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		return g.current
	}

	if value == "" {
		value = uuid.NewString()
	}
	g.current = &Epoch{
		Value:     value,
		CreatedAt: time.Now(),
	}
	return g.current
}

// Current 获取当前纪元
// 未初始化时返回错误，调用方必须拒绝请求
func (g *EpochGuard) Current() (*Epoch, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.current == nil {
		return nil, models.ErrEpochNotInitialized
	}
	return g.current, nil
}

// Initialized 检查守卫是否已完成初始化
func (g *EpochGuard) Initialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current != nil
}

// Matches 检查给定纪元值是否与当前纪元一致
// 未初始化或不一致均返回错误
func (g *EpochGuard) Matches(value string) error {
	current, err := g.Current()
	if err != nil {
		return err
	}
	if current.Value != value {
		return errorx.NewError(models.ErrTypeEpochMismatch, value, current.Value)
	}
	return nil
}
