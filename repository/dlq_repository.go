/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-15 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\repository\dlq_repository.go
 * @Description: 死信队列数据库仓库
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package repository

import (
	"context"
	"time"

	"github.com/kamalyes/go-mudhub/models"
	sqlbuilder "github.com/kamalyes/go-sqlbuilder/repository"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"gorm.io/gorm"
)

// DLQFilter 死信查询过滤条件
type DLQFilter struct {
	Subject  string             // 按主题过滤（可空）
	Statuses []models.DLQStatus // 按状态过滤（空时默认pending）
	DeadFrom time.Time          // 进入死信时间下限（零值忽略）
	Limit    int                // 返回条数上限
}

// DLQRepository 死信队列仓库接口
type DLQRepository interface {
	// Save 保存死信消息
	Save(ctx context.Context, msg *models.DLQMessage) error

	// BatchSave 批量保存死信消息
	BatchSave(ctx context.Context, msgs []*models.DLQMessage) error

	// GetByMessageID 按消息ID查询
	GetByMessageID(ctx context.Context, messageID string) (*models.DLQMessage, error)

	// Query 查询死信消息列表
	Query(ctx context.Context, filter *DLQFilter) ([]*models.DLQMessage, error)

	// MarkReplayed 标记消息重放成功
	MarkReplayed(ctx context.Context, messageIDs []string) error

	// CountPending 统计待重放死信数量
	CountPending(ctx context.Context) (int64, error)

	// DeleteReplayedBefore 删除指定时间前已重放的死信
	DeleteReplayedBefore(ctx context.Context, before time.Time) (int64, error)
}

// GormDLQRepository GORM实现
type GormDLQRepository struct {
	db *gorm.DB
}

// NewGormDLQRepository 创建GORM死信队列仓库
func NewGormDLQRepository(db *gorm.DB) DLQRepository {
	return &GormDLQRepository{db: db}
}

// AutoMigrate 建表
func (r *GormDLQRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.DLQMessage{})
}

// Save 保存死信消息
func (r *GormDLQRepository) Save(ctx context.Context, msg *models.DLQMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// BatchSave 批量保存死信消息
func (r *GormDLQRepository) BatchSave(ctx context.Context, msgs []*models.DLQMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	// 每批插入 1000 条
	return r.db.WithContext(ctx).CreateInBatches(msgs, 1000).Error
}

// GetByMessageID 按消息ID查询
func (r *GormDLQRepository) GetByMessageID(ctx context.Context, messageID string) (*models.DLQMessage, error) {
	var msg models.DLQMessage
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&msg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errorx.NewError(models.ErrTypeDLQMessageNotFound, messageID)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Query 查询死信消息列表
// 按 dead_at 升序排列，重放时保持原始失败顺序
func (r *GormDLQRepository) Query(ctx context.Context, filter *DLQFilter) ([]*models.DLQMessage, error) {
	var msgs []*models.DLQMessage

	// 使用 go-sqlbuilder 构建查询
	query := sqlbuilder.NewQuery()
	query.AddFilterIfNotEmpty("subject", filter.Subject)

	// 状态过滤：未指定时默认只取待重放
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []models.DLQStatus{models.DLQStatusPending}
	}
	statusesInterface := make([]interface{}, len(statuses))
	for i, status := range statuses {
		statusesInterface[i] = status
	}
	query.AddInFilterIfNotEmpty("status", statusesInterface)

	if !filter.DeadFrom.IsZero() {
		query.AddFilter(sqlbuilder.NewGtFilter("dead_at", filter.DeadFrom))
	}

	query.AddOrder("dead_at", "ASC")

	// MySQL 查询限制：用户指定 limit 或最多 1 万条
	limit := mathx.IF(filter.Limit <= 0, 10000, min(filter.Limit, 10000))
	query.Limit(limit)

	gormDB := r.db.WithContext(ctx)
	gormDB = sqlbuilder.ApplyFilters(gormDB, query.Filters)
	gormDB = sqlbuilder.ApplyOrders(gormDB, query.Orders)
	if query.LimitValue != nil {
		gormDB = gormDB.Limit(*query.LimitValue)
	}

	err := gormDB.Find(&msgs).Error
	return msgs, err
}

// MarkReplayed 标记消息重放成功
func (r *GormDLQRepository) MarkReplayed(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.DLQMessage{}).
		Where("message_id IN ?", messageIDs).
		Updates(map[string]interface{}{
			"status":      models.DLQStatusReplayed,
			"replayed_at": now,
		}).Error
}

// CountPending 统计待重放死信数量
func (r *GormDLQRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DLQMessage{}).
		Where("status = ?", models.DLQStatusPending).
		Count(&count).Error
	return count, err
}

// DeleteReplayedBefore 删除指定时间前已重放的死信
func (r *GormDLQRepository) DeleteReplayedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND replayed_at < ?", models.DLQStatusReplayed, before).
		Delete(&models.DLQMessage{})
	return result.RowsAffected, result.Error
}
