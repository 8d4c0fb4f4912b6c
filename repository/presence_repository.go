/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-15 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\repository\presence_repository.go
 * @Description: 玩家在线状态仓库 - 支持 Redis 分布式存储
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/mathx"
	"github.com/redis/go-redis/v9"
)

// PresenceRepository 在线状态仓库接口
// 离线玩家的 last_seen 永久保留，供"上次在线"查询
type PresenceRepository interface {
	// SetOnline 标记玩家在线并写入状态快照
	SetOnline(ctx context.Context, record *models.PresenceRecord) error

	// SetOffline 标记玩家离线并落盘 last_seen
	SetOffline(ctx context.Context, playerID string, lastSeen time.Time) error

	// GetPresence 获取玩家在线记录（离线时回填 last_seen）
	GetPresence(ctx context.Context, playerID string) (*models.PresenceRecord, error)

	// IsOnline 检查玩家是否在线
	IsOnline(ctx context.Context, playerID string) (bool, error)

	// GetOnlinePlayers 获取所有在线玩家ID列表
	GetOnlinePlayers(ctx context.Context) ([]string, error)

	// GetOnlinePlayersByNode 获取指定节点的在线玩家
	GetOnlinePlayersByNode(ctx context.Context, nodeID string) ([]string, error)

	// GetOnlineCount 获取在线玩家总数
	GetOnlineCount(ctx context.Context) (int64, error)

	// RefreshTTL 心跳续期玩家在线状态
	RefreshTTL(ctx context.Context, playerID string) error
}

// RedisPresenceRepository Redis 实现
type RedisPresenceRepository struct {
	client     *redis.Client
	keyPrefix  string        // key 前缀
	defaultTTL time.Duration // 在线键过期时间
}

// NewRedisPresenceRepository 创建 Redis 在线状态仓库
// 参数:
//   - client: Redis 客户端 (github.com/redis/go-redis/v9)
//   - keyPrefix: key 前缀，默认为 "mudhub:presence:"
//   - ttl: 在线键过期时间，建议设置为心跳间隔的 2-3 倍
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string, ttl time.Duration) PresenceRepository {
	return &RedisPresenceRepository{
		client:     client,
		keyPrefix:  mathx.IF(keyPrefix == "", "mudhub:presence:", keyPrefix),
		defaultTTL: mathx.IF(ttl == 0, 5*time.Minute, ttl),
	}
}

// GetPlayerKey 获取玩家在线状态的 key
func (r *RedisPresenceRepository) GetPlayerKey(playerID string) string {
	return fmt.Sprintf("%splayer:%s", r.keyPrefix, playerID)
}

// GetNodeSetKey 获取节点在线玩家集合的 key
func (r *RedisPresenceRepository) GetNodeSetKey(nodeID string) string {
	return fmt.Sprintf("%snode:%s", r.keyPrefix, nodeID)
}

// GetAllPlayersSetKey 获取所有在线玩家集合的 key
func (r *RedisPresenceRepository) GetAllPlayersSetKey() string {
	return fmt.Sprintf("%sall", r.keyPrefix)
}

// GetLastSeenHashKey 获取离线玩家 last_seen 哈希的 key（无TTL，永久保留）
func (r *RedisPresenceRepository) GetLastSeenHashKey() string {
	return fmt.Sprintf("%slast_seen", r.keyPrefix)
}

// SetOnline 标记玩家在线并写入状态快照
func (r *RedisPresenceRepository) SetOnline(ctx context.Context, record *models.PresenceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	// 使用 pipeline 批量执行
	pipe := r.client.Pipeline()

	// 1. 写入玩家在线快照
	pipe.Set(ctx, r.GetPlayerKey(record.PlayerID), data, r.defaultTTL)

	// 2. 加入全局在线集合
	pipe.SAdd(ctx, r.GetAllPlayersSetKey(), record.PlayerID)
	pipe.Expire(ctx, r.GetAllPlayersSetKey(), r.defaultTTL)

	// 3. 加入节点在线集合
	if record.NodeID != "" {
		pipe.SAdd(ctx, r.GetNodeSetKey(record.NodeID), record.PlayerID)
		pipe.Expire(ctx, r.GetNodeSetKey(record.NodeID), r.defaultTTL)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// SetOffline 标记玩家离线并落盘 last_seen
func (r *RedisPresenceRepository) SetOffline(ctx context.Context, playerID string, lastSeen time.Time) error {
	// 先取出快照，以便从节点集合中移除
	record, err := r.getOnlineRecord(ctx, playerID)
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := r.client.Pipeline()

	pipe.Del(ctx, r.GetPlayerKey(playerID))
	pipe.SRem(ctx, r.GetAllPlayersSetKey(), playerID)
	if record != nil && record.NodeID != "" {
		pipe.SRem(ctx, r.GetNodeSetKey(record.NodeID), playerID)
	}

	// last_seen 哈希无TTL，离线记录永不丢弃
	pipe.HSet(ctx, r.GetLastSeenHashKey(), playerID, lastSeen.Format(time.RFC3339Nano))

	_, err = pipe.Exec(ctx)
	return err
}

// getOnlineRecord 读取在线快照，键不存在时返回 redis.Nil
func (r *RedisPresenceRepository) getOnlineRecord(ctx context.Context, playerID string) (*models.PresenceRecord, error) {
	data, err := r.client.Get(ctx, r.GetPlayerKey(playerID)).Result()
	if err != nil {
		return nil, err
	}

	var record models.PresenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
	}
	return &record, nil
}

// GetPresence 获取玩家在线记录
// 在线时返回快照；离线时返回 last_seen 回填的离线记录
func (r *RedisPresenceRepository) GetPresence(ctx context.Context, playerID string) (*models.PresenceRecord, error) {
	record, err := r.getOnlineRecord(ctx, playerID)
	if err == nil {
		return record, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	offline := &models.PresenceRecord{PlayerID: playerID}
	raw, err := r.client.HGet(ctx, r.GetLastSeenHashKey(), playerID).Result()
	if err == redis.Nil {
		return offline, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSeen, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
		offline.LastSeen = lastSeen
	}
	return offline, nil
}

// IsOnline 检查玩家是否在线
func (r *RedisPresenceRepository) IsOnline(ctx context.Context, playerID string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.GetPlayerKey(playerID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// GetOnlinePlayers 获取所有在线玩家ID列表
func (r *RedisPresenceRepository) GetOnlinePlayers(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.GetAllPlayersSetKey()).Result()
}

// GetOnlinePlayersByNode 获取指定节点的在线玩家
func (r *RedisPresenceRepository) GetOnlinePlayersByNode(ctx context.Context, nodeID string) ([]string, error) {
	return r.client.SMembers(ctx, r.GetNodeSetKey(nodeID)).Result()
}

// GetOnlineCount 获取在线玩家总数
func (r *RedisPresenceRepository) GetOnlineCount(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.GetAllPlayersSetKey()).Result()
}

// RefreshTTL 心跳续期玩家在线状态
func (r *RedisPresenceRepository) RefreshTTL(ctx context.Context, playerID string) error {
	record, err := r.getOnlineRecord(ctx, playerID)
	if err != nil {
		return err
	}

	record.LastSeen = time.Now()
	return r.SetOnline(ctx, record)
}
