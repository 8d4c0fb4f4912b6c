/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-12 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\models\event.go
 * @Description: 游戏领域事件模型（带类型标签的联合体）与下行消息信封
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package models

import (
	"encoding/json"
	"time"

	"github.com/kamalyes/go-toolbox/pkg/errorx"
)

// EventKind 游戏事件类型
type EventKind string

const (
	EventKindRoomEnter    EventKind = "room_enter"    // 玩家进入房间
	EventKindRoomLeave    EventKind = "room_leave"    // 玩家离开房间
	EventKindChat         EventKind = "chat"          // 房间聊天
	EventKindCombat       EventKind = "combat"        // 战斗广播
	EventKindTell         EventKind = "tell"          // 私聊（玩家定向）
	EventKindSystemNotice EventKind = "system_notice" // 系统通知（玩家定向）
	EventKindSystemWide   EventKind = "system_wide"   // 全服系统广播
	EventKindOpaque       EventKind = "opaque"        // 透传JSON（向前兼容）
)

// String 实现Stringer接口
func (k EventKind) String() string {
	return string(k)
}

// IsValid 检查事件类型是否有效
func (k EventKind) IsValid() bool {
	switch k {
	case EventKindRoomEnter, EventKindRoomLeave, EventKindChat, EventKindCombat,
		EventKindTell, EventKindSystemNotice, EventKindSystemWide, EventKindOpaque:
		return true
	default:
		return false
	}
}

// EventScope 事件投递范围
type EventScope string

const (
	EventScopeRoom   EventScope = "room"   // 房间范围：广播给房间订阅者
	EventScopePlayer EventScope = "player" // 玩家范围：直投该玩家所有连接
	EventScopeSystem EventScope = "system" // 系统范围：全服广播
)

// Scope 根据事件类型推导投递范围，路由器据此分派而无需反射
func (k EventKind) Scope() EventScope {
	switch k {
	case EventKindRoomEnter, EventKindRoomLeave, EventKindChat, EventKindCombat:
		return EventScopeRoom
	case EventKindTell, EventKindSystemNotice:
		return EventScopePlayer
	default:
		return EventScopeSystem
	}
}

// GameEvent 游戏逻辑层产生的领域事件
// Kind 决定必填字段：房间范围事件要求 RoomID，玩家范围事件要求 TargetPlayerID，
// opaque 事件仅要求 Payload 可被下游解析
type GameEvent struct {
	ID             string          `json:"id"`                         // 事件ID
	Kind           EventKind       `json:"kind"`                       // 事件类型
	RoomID         string          `json:"room_id,omitempty"`          // 房间ID（房间范围事件）
	TargetPlayerID string          `json:"target_player_id,omitempty"` // 目标玩家ID（玩家范围事件）
	ActorPlayerID  string          `json:"actor_player_id,omitempty"`  // 触发者玩家ID
	Content        string          `json:"content,omitempty"`          // 文本内容（聊天/通知）
	Payload        json.RawMessage `json:"payload,omitempty"`          // 透传数据（opaque或附加数据）
	CreatedAt      time.Time       `json:"created_at"`                 // 创建时间
	SourceNodeID   string          `json:"source_node_id,omitempty"`   // 产生事件的节点ID
}

// NewGameEvent 创建游戏事件
func NewGameEvent(kind EventKind) *GameEvent {
	return &GameEvent{
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// SetID 设置事件ID
func (e *GameEvent) SetID(id string) *GameEvent {
	e.ID = id
	return e
}

// SetRoomID 设置房间ID
func (e *GameEvent) SetRoomID(roomID string) *GameEvent {
	e.RoomID = roomID
	return e
}

// SetTargetPlayerID 设置目标玩家ID
func (e *GameEvent) SetTargetPlayerID(playerID string) *GameEvent {
	e.TargetPlayerID = playerID
	return e
}

// SetActorPlayerID 设置触发者玩家ID
func (e *GameEvent) SetActorPlayerID(playerID string) *GameEvent {
	e.ActorPlayerID = playerID
	return e
}

// SetContent 设置文本内容
func (e *GameEvent) SetContent(content string) *GameEvent {
	e.Content = content
	return e
}

// SetPayload 设置透传数据
func (e *GameEvent) SetPayload(payload json.RawMessage) *GameEvent {
	e.Payload = payload
	return e
}

// Validate 校验事件必填字段
func (e *GameEvent) Validate() error {
	if !e.Kind.IsValid() {
		return errorx.NewError(ErrTypeInvalidEvent, "unknown kind: "+string(e.Kind))
	}
	switch e.Kind.Scope() {
	case EventScopeRoom:
		if e.RoomID == "" {
			return errorx.NewError(ErrTypeInvalidEvent, "room event missing room_id")
		}
	case EventScopePlayer:
		if e.TargetPlayerID == "" {
			return errorx.NewError(ErrTypeInvalidEvent, "player event missing target_player_id")
		}
	}
	return nil
}

// ============================================================================
// 下行消息信封
// ============================================================================

// Envelope 下行消息信封，连接层只搬运信封字节，不关心内部格式
type Envelope struct {
	Type      string          `json:"type"`      // 消息类型（事件kind或协议消息类型）
	Data      json.RawMessage `json:"data"`      // 消息体
	Timestamp time.Time       `json:"timestamp"` // 时间戳
}

// NewEnvelope 创建消息信封
func NewEnvelope(msgType string, data json.RawMessage) *Envelope {
	return &Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Encode 序列化信封
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// EncodeEvent 将游戏事件包装为信封字节
func EncodeEvent(event *GameEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return NewEnvelope(string(event.Kind), data).Encode()
}

// DecodeEnvelope 反序列化信封
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeEvent 解析信封内的游戏事件
func (e *Envelope) DecodeEvent() (*GameEvent, error) {
	var event GameEvent
	if err := json.Unmarshal(e.Data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
