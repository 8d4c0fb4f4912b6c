/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-13 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\dlq.go
 * @Description: 死信消息记录模型
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import "time"

// DLQMessage 死信消息记录
// 发布重试耗尽后的消息连同错误信息落入死信队列，等待人工或脚本重放
type DLQMessage struct {
	ID         uint       `gorm:"primaryKey;autoIncrement;comment:主键" json:"id"`
	MessageID  string     `gorm:"column:message_id;size:64;not null;uniqueIndex;comment:消息ID" json:"message_id"`
	Subject    string     `gorm:"column:subject;size:255;not null;index;comment:Broker主题" json:"subject"`
	Payload    []byte     `gorm:"type:longblob;not null;comment:完整消息载荷" json:"payload"`
	ErrorText  string     `gorm:"column:error_text;type:text;comment:终态失败的错误信息" json:"error_text"`
	RetryCount int        `gorm:"column:retry_count;default:0;comment:入队前已重试次数" json:"retry_count"`
	Status     DLQStatus  `gorm:"column:status;size:20;not null;default:'pending';index;comment:死信状态" json:"status"`
	DeadAt     time.Time  `gorm:"column:dead_at;not null;index;comment:进入死信队列的时间" json:"dead_at"`
	ReplayedAt *time.Time `gorm:"column:replayed_at;comment:重放成功时间" json:"replayed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;comment:记录创建时间" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime;comment:记录最后更新时间" json:"updated_at"`
}

// TableName 指定表名
func (DLQMessage) TableName() string {
	return "mudhub_dlq_messages"
}

// TableComment 表注释
func (DLQMessage) TableComment() string {
	return "消息总线死信队列表-存储重试耗尽的消息用于人工重放"
}
