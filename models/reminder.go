package models

import (
	"time"
)

// Reminder 提醒模型，关联一条任务
type Reminder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"taskId"`
	RemindAt  time.Time `gorm:"not null;index" json:"remindAt"` // 提醒触发时间
	UserID    int64     `gorm:"not null" json:"userId"`         // Telegram 会话 ID
	CreatedAt time.Time `json:"createdAt"`
}
