/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-21 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\metrics\exporter.go
 * @Description: 指标导出器 - 周期性采集 Hub 与总线快照
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package metrics

import (
	"context"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/syncx"

	"github.com/kamalyes/go-mudhub/bus"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
)

// HubStatsSource Hub统计快照来源
type HubStatsSource interface {
	GetStats() *models.HubStats
}

// BusMetricsSource 总线指标快照来源
type BusMetricsSource interface {
	GetMetrics() *bus.MetricsSnapshot
}

// ExporterConfig 导出器配置
type ExporterConfig struct {
	Hub      HubStatsSource       // Hub统计来源（可为nil）
	Bus      BusMetricsSource     // 总线指标来源（可为nil）
	Interval time.Duration        // 采集间隔，默认15秒
	Logger   middleware.MudLogger // 日志器
}

// Exporter 周期性采集快照并写入Prometheus指标
type Exporter struct {
	config *ExporterConfig
	logger middleware.MudLogger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewExporter 创建导出器
func NewExporter(config *ExporterConfig) *Exporter {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Exporter{
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动采集循环（阻塞直到Stop被调用）
func (e *Exporter) Run() {
	syncx.NewEventLoop(e.ctx).
		OnTicker(e.config.Interval, e.Collect).
		OnPanic(func(r interface{}) {
			e.logger.ErrorKV("指标采集panic", "panic", r)
		}).
		Run()
}

// Collect 采集一轮快照
func (e *Exporter) Collect() {
	if e.config.Hub != nil {
		ObserveHubStats(e.config.Hub.GetStats())
	}
	if e.config.Bus != nil {
		ObserveBusMetrics(e.config.Bus.GetMetrics())
	}
}

// Stop 停止采集循环
func (e *Exporter) Stop() {
	e.cancel()
}
