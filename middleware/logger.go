/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\middleware\logger.go
 * @Description: go-mudhub 日志接口，直接复用 go-logger
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package middleware

import (
	"time"

	"github.com/kamalyes/go-logger"
)

// MudLogger 直接使用 go-logger.ILogger
type MudLogger = logger.ILogger

// NewMudLogger 创建新的日志器，基于 go-logger
func NewMudLogger(config *logger.Logger) MudLogger {
	return config
}

// NewDefaultMudLogger 创建默认配置的日志器
func NewDefaultMudLogger() MudLogger {
	return logger.NewLogger().
		WithLevel(logger.DEBUG).
		WithPrefix("[MUDHUB] ").
		WithShowCaller(false).
		WithColorful(true).
		WithTimeFormat(time.RFC3339Nano)
}

// NewNoOpLogger 创建空日志实例
func NewNoOpLogger() MudLogger {
	return logger.NewEmptyLogger()
}

// 全局日志器
var (
	// DefaultLogger 默认日志器实例
	DefaultLogger MudLogger = NewDefaultMudLogger()

	// NoOpLoggerInstance 空日志器实例
	NoOpLoggerInstance MudLogger = NewNoOpLogger()
)

// SetDefaultLogger 设置默认日志器
func SetDefaultLogger(l MudLogger) {
	DefaultLogger = l
}
