package models

import (
	"fmt"
	"time"
)

// Importance 任务重要程度
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ParseImportance 校验重要程度取值
func ParseImportance(value string) (Importance, error) {
	switch Importance(value) {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return Importance(value), nil
	}
	return "", fmt.Errorf("无效的重要程度: %s", value)
}

// Label 返回重要程度的显示文案
func (i Importance) Label() string {
	switch i {
	case ImportanceHigh:
		return "非常重要"
	case ImportanceMedium:
		return "一般重要"
	case ImportanceLow:
		return "不太重要"
	}
	return string(i)
}

// Task 任务模型
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Text        string     `gorm:"type:varchar(255);not null" json:"text"`
	CreatedDate time.Time  `gorm:"not null" json:"createdDate"` // 精确到分钟
	Importance  Importance `gorm:"type:varchar(10);not null" json:"importance"`
	Completed   bool       `gorm:"default:false" json:"completed"`
}
