/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-15 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\repository\base_connect_setup.go
 * @Description: 测试连接配置 - 统一管理 Redis 和 MySQL 连接
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// 单例 Redis 客户端
	testRedisInstance *redis.Client
	testRedisOnce     sync.Once

	// 单例 MySQL 连接
	testDBInstance *gorm.DB
	testDBOnce     sync.Once

	// 迁移缓存，避免重复迁移相同模型
	migrateMutex   sync.Mutex
	migratedModels = make(map[string]bool)
)

// GetTestRedisClient 获取测试用 Redis 客户端（单例模式）
// 从环境变量 TEST_REDIS_ADDR / TEST_REDIS_PASSWORD / TEST_REDIS_DB 读取配置，
// 未配置时跳过测试
func GetTestRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未配置 TEST_REDIS_ADDR，跳过 Redis 集成测试")
	}

	testRedisOnce.Do(func() {
		db := 1
		if raw := os.Getenv("TEST_REDIS_DB"); raw != "" {
			fmt.Sscanf(raw, "%d", &db)
		}

		testRedisInstance = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     os.Getenv("TEST_REDIS_PASSWORD"),
			DB:           db,
			PoolSize:     100,
			MaxRetries:   3,
			DialTimeout:  10 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := testRedisInstance.Ping(ctx).Err()
		require.NoError(t, err, "Redis 连接失败，请检查配置和网络")
	})

	if testRedisInstance == nil {
		t.Fatal("Redis 单例未正确初始化")
	}
	return testRedisInstance
}

// GetTestDB 获取测试用 MySQL 数据库连接（单例模式）
// 从环境变量 TEST_MYSQL_DSN 读取配置，未配置时跳过测试
func GetTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("未配置 TEST_MYSQL_DSN，跳过 MySQL 集成测试")
	}

	testDBOnce.Do(func() {
		db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger:                 logger.Default.LogMode(logger.Silent), // 测试时使用静默模式
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		})
		require.NoError(t, err, "MySQL 数据库连接失败，请检查配置")

		sqlDB, err := db.DB()
		require.NoError(t, err, "获取底层 DB 失败")
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
		require.NoError(t, err, "数据库连接验证失败，请检查MySQL服务和网络状态")

		testDBInstance = db
	})

	if testDBInstance == nil {
		t.Fatal("MySQL 单例未正确初始化")
	}
	return testDBInstance
}

// GetTestDBWithMigration 获取测试用数据库并执行迁移
// 使用缓存机制避免重复迁移相同的模型
func GetTestDBWithMigration(t *testing.T, models ...interface{}) *gorm.DB {
	db := GetTestDB(t)
	if len(models) == 0 {
		return db
	}

	migrateMutex.Lock()
	defer migrateMutex.Unlock()

	var needMigrate []interface{}
	for _, model := range models {
		modelType := fmt.Sprintf("%T", model)
		if !migratedModels[modelType] {
			needMigrate = append(needMigrate, model)
			migratedModels[modelType] = true
		}
	}

	if len(needMigrate) > 0 {
		err := db.AutoMigrate(needMigrate...)
		require.NoError(t, err, "数据库迁移失败")
	}
	return db
}
