/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-08-19 00:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-30 00:00:00
 * @FilePath: \go-mudhub\router\subjects.go
 * @Description: 总线主题命名空间
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package router

import "strings"

const (
	// SubjectRoomPrefix 房间范围事件主题前缀
	SubjectRoomPrefix = "mud.room."
	// SubjectPlayerPrefix 玩家范围事件主题前缀
	SubjectPlayerPrefix = "mud.player."
	// SubjectSystem 全服系统事件主题
	SubjectSystem = "mud.system"
)

// RoomSubject 生成房间主题
func RoomSubject(roomID string) string {
	return SubjectRoomPrefix + roomID
}

// PlayerSubject 生成玩家主题
func PlayerSubject(playerID string) string {
	return SubjectPlayerPrefix + playerID
}

// ParseRoomSubject 从房间主题中解析房间ID
func ParseRoomSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, SubjectRoomPrefix) {
		return "", false
	}
	roomID := strings.TrimPrefix(subject, SubjectRoomPrefix)
	return roomID, roomID != ""
}

// ParsePlayerSubject 从玩家主题中解析玩家ID
func ParsePlayerSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, SubjectPlayerPrefix) {
		return "", false
	}
	playerID := strings.TrimPrefix(subject, SubjectPlayerPrefix)
	return playerID, playerID != ""
}
