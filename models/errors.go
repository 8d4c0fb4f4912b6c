/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\errors.go
 * @Description: 实时连接核心错误定义 - 基于errorx.BaseError模式
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// 错误类型定义，基于errorx.ErrorType
type ErrorType = errorx.ErrorType

// 实时连接核心错误码常量定义
// 使用 82xxx 区间，避免与其他包冲突（82 = MudHub）
const (
	// 限流与认证错误 (82000-82099) - 不可重试
	ErrTypeRateLimited         ErrorType = 82001 // 连接尝试触发IP限流
	ErrTypeEpochNotInitialized ErrorType = 82002 // 认证纪元未初始化（启动期编程错误）
	ErrTypeEpochMismatch       ErrorType = 82003 // 令牌纪元与当前进程不匹配
	ErrTypeInvalidToken        ErrorType = 82004 // 令牌无效或缺少纪元声明

	// 消息总线错误 (82100-82199)
	ErrTypeCircuitOpen         ErrorType = 82101 // 熔断器打开，快速失败 - 可重试
	ErrTypeBrokerPublishFailed ErrorType = 82102 // Broker发布失败 - 可重试
	ErrTypeDeadLettered        ErrorType = 82103 // 消息重试耗尽进入死信队列 - 不可重试
	ErrTypeDLQMessageNotFound  ErrorType = 82104 // 死信消息未找到 - 不可重试
	ErrTypeBusClosed           ErrorType = 82105 // 总线已关闭 - 不可重试

	// 连接管理错误 (82200-82299)
	ErrTypeConnectionNotFound ErrorType = 82201 // 连接未找到 - 不可重试
	ErrTypeConnectionClosed   ErrorType = 82202 // 连接已关闭 - 不可重试
	ErrTypePendingQueueFull   ErrorType = 82203 // 待投递队列已满 - 可重试
	ErrTypeSendBufferFull     ErrorType = 82204 // 连接发送缓冲已满 - 可重试

	// 房间订阅错误 (82300-82399) - 不可重试
	ErrTypeNotSubscribed   ErrorType = 82301 // 连接未订阅该房间
	ErrTypeRoomMoveInvalid ErrorType = 82302 // 房间迁移参数非法

	// 在线状态与会话错误 (82400-82499) - 不可重试
	ErrTypeSessionNotFound ErrorType = 82401 // 会话未找到
	ErrTypePlayerOffline   ErrorType = 82402 // 玩家离线

	// 事件路由错误 (82500-82599) - 不可重试
	ErrTypeInvalidEvent ErrorType = 82501 // 事件缺少必要字段或类型未知

	// 跨节点事件发布错误 (82600-82699) - 不可重试
	ErrTypePubSubNotSet ErrorType = 82601 // PubSub未设置
)

// init 初始化所有错误类型注册
// 注意：在运行多个测试包时，可能会看到 "ErrorType XXX is already registered" 的警告信息
// 这是正常现象，errorx包内部会忽略重复注册
func init() {
	// 注册限流与认证错误
	errorx.RegisterError(ErrTypeRateLimited, "connection attempts rate limited for ip: %s")
	errorx.RegisterError(ErrTypeEpochNotInitialized, "auth epoch guard not initialized")
	errorx.RegisterError(ErrTypeEpochMismatch, "token epoch %s does not match current epoch %s")
	errorx.RegisterError(ErrTypeInvalidToken, "invalid token: %s")

	// 注册消息总线错误
	errorx.RegisterError(ErrTypeCircuitOpen, "circuit breaker is open")
	errorx.RegisterError(ErrTypeBrokerPublishFailed, "broker publish failed: %s")
	errorx.RegisterError(ErrTypeDeadLettered, "message dead-lettered after retries: %s")
	errorx.RegisterError(ErrTypeDLQMessageNotFound, "dlq message not found: %s")
	errorx.RegisterError(ErrTypeBusClosed, "message bus is closed")

	// 注册连接管理错误
	errorx.RegisterError(ErrTypeConnectionNotFound, "connection not found: %s")
	errorx.RegisterError(ErrTypeConnectionClosed, "connection is closed")
	errorx.RegisterError(ErrTypePendingQueueFull, "pending queue is full for player: %s")
	errorx.RegisterError(ErrTypeSendBufferFull, "connection send buffer is full")

	// 注册房间订阅错误
	errorx.RegisterError(ErrTypeNotSubscribed, "connection %s is not subscribed to room %s")
	errorx.RegisterError(ErrTypeRoomMoveInvalid, "invalid room move: %s")

	// 注册在线状态与会话错误
	errorx.RegisterError(ErrTypeSessionNotFound, "session not found for player: %s")
	errorx.RegisterError(ErrTypePlayerOffline, "player is offline: %s")

	// 注册事件路由错误
	errorx.RegisterError(ErrTypeInvalidEvent, "invalid game event: %s")

	// 注册跨节点事件发布错误
	errorx.RegisterError(ErrTypePubSubNotSet, "pubsub is not configured")

	// 错误变量必须在消息注册完成后创建，否则拿到的是 "unknown error"（类型为0）
	ErrEpochNotInitialized = errorx.NewError(ErrTypeEpochNotInitialized)
	ErrCircuitOpen = errorx.NewError(ErrTypeCircuitOpen)
	ErrBusClosed = errorx.NewError(ErrTypeBusClosed)
	ErrConnectionClosed = errorx.NewError(ErrTypeConnectionClosed)
	ErrSendBufferFull = errorx.NewError(ErrTypeSendBufferFull)
	ErrPubSubNotSet = errorx.NewError(ErrTypePubSubNotSet)
}

// ============================================================================
// 错误变量定义
// ============================================================================

var (
	ErrEpochNotInitialized errorx.BaseError
	ErrCircuitOpen         errorx.BaseError
	ErrBusClosed           errorx.BaseError
	ErrConnectionClosed    errorx.BaseError
	ErrSendBufferFull      errorx.BaseError
	ErrPubSubNotSet        errorx.BaseError
)

// errorTyper 提取errorx错误类型
type errorTyper interface{ GetType() ErrorType }

// IsRetryableError 判断错误是否可以重试
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errxErr, ok := err.(errorTyper); ok {
		switch errxErr.GetType() {
		case ErrTypeCircuitOpen, ErrTypeBrokerPublishFailed,
			ErrTypePendingQueueFull, ErrTypeSendBufferFull:
			return true
		}
		return false
	}
	switch err {
	case ErrCircuitOpen, ErrSendBufferFull:
		return true
	default:
		return false
	}
}

// IsCircuitOpenError 判断是否为熔断器打开错误
// 调用方据此降级为本进程内直投
func IsCircuitOpenError(err error) bool {
	if err == nil {
		return false
	}
	if errxErr, ok := err.(errorTyper); ok {
		return errxErr.GetType() == ErrTypeCircuitOpen
	}
	return err == ErrCircuitOpen
}

// IsRateLimitedError 判断是否为限流错误
func IsRateLimitedError(err error) bool {
	if err == nil {
		return false
	}
	if errxErr, ok := err.(errorTyper); ok {
		return errxErr.GetType() == ErrTypeRateLimited
	}
	return false
}

// IsEpochError 判断是否为纪元校验类错误（统一按无效凭证处理，失败即拒绝）
func IsEpochError(err error) bool {
	if err == nil {
		return false
	}
	if errxErr, ok := err.(errorTyper); ok {
		errType := errxErr.GetType()
		return errType == ErrTypeEpochMismatch ||
			errType == ErrTypeEpochNotInitialized ||
			errType == ErrTypeInvalidToken
	}
	return err == ErrEpochNotInitialized
}
