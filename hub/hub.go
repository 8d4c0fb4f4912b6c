/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-18 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\hub\hub.go
 * @Description: Hub 核心结构和类型定义 - 连接管理中心
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */

package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/idgen"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/kamalyes/go-toolbox/pkg/osx"
	"github.com/kamalyes/go-toolbox/pkg/safe"

	"github.com/kamalyes/go-mudhub/auth"
	"github.com/kamalyes/go-mudhub/middleware"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-mudhub/presence"
	"github.com/kamalyes/go-mudhub/rooms"
)

// ============================================================================
// 类型别名 - 从 models middleware 包导入
// ============================================================================

type (
	Connection       = models.Connection
	Session          = models.Session
	PresenceRecord   = models.PresenceRecord
	Envelope         = models.Envelope
	HubStats         = models.HubStats
	BroadcastResult  = models.BroadcastResult
	NewSessionResult = models.NewSessionResult
	DeliveryStatus   = models.DeliveryStatus
	DisconnectReason = models.DisconnectReason
	IDGenerator      = models.IDGenerator
	MudLogger        = middleware.MudLogger
	RateLimiter      = middleware.RateLimiter
)

// 常量
const (
	ConnectionTypeWebSocket = models.ConnectionTypeWebSocket
	ConnectionTypeSSE       = models.ConnectionTypeSSE

	DeliveryStatusDelivered = models.DeliveryStatusDelivered
	DeliveryStatusQueued    = models.DeliveryStatusQueued
	DeliveryStatusDropped   = models.DeliveryStatusDropped

	DisconnectReasonReadError        = models.DisconnectReasonReadError
	DisconnectReasonWriteError       = models.DisconnectReasonWriteError
	DisconnectReasonHeartbeatTimeout = models.DisconnectReasonHeartbeatTimeout
	DisconnectReasonNewSession       = models.DisconnectReasonNewSession
	DisconnectReasonClientRequest    = models.DisconnectReasonClientRequest
	DisconnectReasonServerShutdown   = models.DisconnectReasonServerShutdown
)

// 回调函数类型
type (
	// ConnectCallback 连接建立回调
	ConnectCallback func(ctx context.Context, conn *Connection) error
	// DisconnectCallback 连接断开回调
	DisconnectCallback func(ctx context.Context, conn *Connection, reason DisconnectReason)
	// MessageReceivedCallback 上行消息回调（心跳之外的消息交给游戏逻辑层）
	MessageReceivedCallback func(ctx context.Context, conn *Connection, envelope *Envelope) error
	// HeartbeatTimeoutCallback 心跳超时回调
	HeartbeatTimeoutCallback func(connID string, playerID string, lastHeartbeat time.Time)
	// PendingDropCallback 待投递消息被挤出或过期回调
	PendingDropCallback func(playerID string, dropped *models.PendingMessage)
)

// ============================================================================
// Hub 配置
// ============================================================================

// Config Hub配置
type Config struct {
	NodeIP   string // 节点IP（环境变量未提供节点标识时参与节点ID生成）
	NodePort int    // 节点端口

	SendBufferSize       int           // 每连接发送缓冲大小
	HeartbeatInterval    time.Duration // 心跳检查间隔
	ClientTimeout        time.Duration // 心跳超时时长，超过即强制断开
	PendingPerPlayer     int           // 每玩家待投递队列上限
	PendingMaxAge        time.Duration // 待投递消息最大存活时长
	PendingSweepInterval time.Duration // 待投递过期扫描间隔

	RateLimiter  *RateLimiter       // 连接限流器（可为nil，表示不限流）
	EpochGuard   *auth.EpochGuard   // 认证纪元守卫（可为nil）
	TokenService *auth.TokenService // 令牌服务（可为nil，表示传输层不做认证）
	Logger       MudLogger          // 日志器
}

// DefaultConfig 默认Hub配置
func DefaultConfig() *Config {
	return &Config{
		SendBufferSize:       256,
		HeartbeatInterval:    30 * time.Second,
		ClientTimeout:        90 * time.Second,
		PendingPerPlayer:     100,
		PendingMaxAge:        5 * time.Minute,
		PendingSweepInterval: time.Minute,
	}
}

// ============================================================================
// Hub 核心结构
// ============================================================================

// Hub 连接管理中心
// 统一管理 WebSocket/SSE 连接，组合在线跟踪与房间订阅
type Hub struct {
	nodeID    string
	startTime time.Time

	connections map[string]*Connection            // 连接ID -> 连接
	playerConns map[string]map[string]*Connection // 玩家ID -> 连接集合

	// 原子计数器：用于快速获取连接数，避免加锁
	wsConnCount  atomic.Int64
	sseConnCount atomic.Int64

	// 消息统计
	messagesSent    atomic.Int64
	messagesQueued  atomic.Int64
	messagesDropped atomic.Int64
	broadcastsSent  atomic.Int64

	// 玩家ID -> 待投递消息（目标短暂不可达时排队，重连后按序补投）
	pending      map[string][]*models.PendingMessage
	pendingDepth atomic.Int64

	tracker     *presence.Tracker
	rooms       *rooms.Manager
	idGenerator IDGenerator

	connectCallback          ConnectCallback
	disconnectCallback       DisconnectCallback
	messageReceivedCallback  MessageReceivedCallback
	heartbeatTimeoutCallback HeartbeatTimeoutCallback
	pendingDropCallback      PendingDropCallback

	wg       sync.WaitGroup
	shutdown atomic.Bool
	started  atomic.Bool
	startCh  chan struct{}

	logger    MudLogger
	mutex     sync.RWMutex
	pendingMu sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	config    *Config
}

// NewHub 创建新的Hub
func NewHub(config *Config, tracker *presence.Tracker, roomManager *rooms.Manager) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	// 生成节点ID（支持K8s环境），统一使用短哈希格式
	nodeID := safe.ShortHash(generateNodeID(config))

	workerID := osx.GetWorkerIdForSnowflake()
	config.SendBufferSize = mathx.IfEmpty(config.SendBufferSize, 256)
	config.HeartbeatInterval = mathx.IfNotZero(config.HeartbeatInterval, 30*time.Second)
	config.ClientTimeout = mathx.IfNotZero(config.ClientTimeout, 90*time.Second)
	config.PendingPerPlayer = mathx.IfEmpty(config.PendingPerPlayer, 100)
	config.PendingMaxAge = mathx.IfNotZero(config.PendingMaxAge, 5*time.Minute)
	config.PendingSweepInterval = mathx.IfNotZero(config.PendingSweepInterval, time.Minute)
	if config.Logger == nil {
		config.Logger = middleware.DefaultLogger
	}

	hub := &Hub{
		nodeID:      nodeID,
		startTime:   time.Now(),
		connections: make(map[string]*Connection),
		playerConns: make(map[string]map[string]*Connection),
		pending:     make(map[string][]*models.PendingMessage),
		tracker:     tracker,
		rooms:       roomManager,
		idGenerator: idgen.NewShortFlakeGenerator(workerID),
		startCh:     make(chan struct{}),
		logger:      config.Logger,
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
	}
	return hub
}

// ============================================================================
// 基础 Getter/Setter 方法
// ============================================================================

func (h *Hub) GetNodeID() string             { return h.nodeID }
func (h *Hub) GetLogger() MudLogger          { return h.logger }
func (h *Hub) GetContext() context.Context   { return h.ctx }
func (h *Hub) GetConfig() *Config            { return h.config }
func (h *Hub) IsStarted() bool               { return h.started.Load() }
func (h *Hub) IsShutdown() bool              { return h.shutdown.Load() }
func (h *Hub) GetTracker() *presence.Tracker { return h.tracker }
func (h *Hub) GetRooms() *rooms.Manager      { return h.rooms }
func (h *Hub) GetIDGenerator() IDGenerator   { return h.idGenerator }

func (h *Hub) SetConnectCallback(cb ConnectCallback)                   { h.connectCallback = cb }
func (h *Hub) SetDisconnectCallback(cb DisconnectCallback)             { h.disconnectCallback = cb }
func (h *Hub) SetMessageReceivedCallback(cb MessageReceivedCallback)   { h.messageReceivedCallback = cb }
func (h *Hub) SetHeartbeatTimeoutCallback(cb HeartbeatTimeoutCallback) { h.heartbeatTimeoutCallback = cb }
func (h *Hub) SetPendingDropCallback(cb PendingDropCallback)           { h.pendingDropCallback = cb }

// ============================================================================
// K8s 兼容的节点ID生成
// ============================================================================

// generateNodeID 生成节点ID（支持K8s环境）
// 优先级：POD_NAME > HOSTNAME > NODE_ID > IP:Port
func generateNodeID(config *Config) string {
	if podName := osx.Getenv("POD_NAME", ""); podName != "" {
		return podName
	}
	if hostname := osx.Getenv("HOSTNAME", ""); hostname != "" {
		return hostname
	}
	if nodeID := osx.Getenv("NODE_ID", ""); nodeID != "" {
		return nodeID
	}
	return fmt.Sprintf("%s-%d", config.NodeIP, config.NodePort)
}
