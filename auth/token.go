/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-13 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\auth\token.go
 * @Description: JWT令牌签发与校验 - 携带认证纪元声明
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kamalyes/go-mudhub/models"
	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// TokenClaims JWT声明结构
// Epoch声明绑定签发进程的认证纪元，进程重启后旧令牌整体作废
type TokenClaims struct {
	PlayerID string `json:"player_id"` // 玩家ID
	Epoch    string `json:"epoch"`     // 认证纪元
	jwt.RegisteredClaims
}

// TokenServiceConfig 令牌服务配置
type TokenServiceConfig struct {
	Secret []byte        // HMAC签名密钥
	Issuer string        // 签发者标识
	TTL    time.Duration // 令牌有效期
}

// DefaultTokenServiceConfig 默认令牌服务配置
func DefaultTokenServiceConfig(secret []byte) *TokenServiceConfig {
	return &TokenServiceConfig{
		Secret: secret,
		Issuer: "go-mudhub",
		TTL:    24 * time.Hour,
	}
}

// TokenService JWT令牌服务
// 签发时写入当前纪元，校验时要求纪元与守卫一致，任何失败都拒绝（fail-closed）
type TokenService struct {
	config *TokenServiceConfig
	guard  *EpochGuard
}

// NewTokenService 创建令牌服务
func NewTokenService(config *TokenServiceConfig, guard *EpochGuard) *TokenService {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &TokenService{
		config: config,
		guard:  guard,
	}
}

// Issue 为指定玩家签发携带当前纪元的令牌
func (s *TokenService) Issue(playerID string) (string, error) {
	epoch, err := s.guard.Current()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &TokenClaims{
		PlayerID: playerID,
		Epoch:    epoch.Value,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// Validate 校验令牌并检查纪元
// 签名错误、过期、缺少纪元声明、纪元不匹配均拒绝
func (s *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errorx.NewError(models.ErrTypeInvalidToken, "unexpected signing method")
		}
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, errorx.NewError(models.ErrTypeInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errorx.NewError(models.ErrTypeInvalidToken, "claims invalid")
	}
	if claims.PlayerID == "" {
		return nil, errorx.NewError(models.ErrTypeInvalidToken, "missing player_id claim")
	}
	if claims.Epoch == "" {
		return nil, errorx.NewError(models.ErrTypeInvalidToken, "missing epoch claim")
	}

	if err := s.guard.Matches(claims.Epoch); err != nil {
		return nil, err
	}

	return claims, nil
}
