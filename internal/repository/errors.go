// Package repository 提供了数据访问层的接口与实现。
package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 表示记录不存在。
	ErrNotFound = errors.New("record not found")
	// ErrNotParticipant 表示用户不是会话参与者。
	ErrNotParticipant = errors.New("user is not a participant of the conversation")
	// ErrToneChanged 表示发送者的语气在改写期间被修改。
	ErrToneChanged = errors.New("sender tone changed during send")
	// ErrConflict 表示并发创建会话后仍无法读到胜出的记录。
	ErrConflict = errors.New("conversation creation conflict")
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// nextMessageTime 返回一条新消息的创建时间：精确到微秒，且严格晚于会话的最后活跃时间，
// 从而保证同一会话内消息按提交顺序排列。
func nextMessageTime(lastActivity, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(lastActivity) {
		return lastActivity.Add(time.Microsecond)
	}
	return now
}
