package dialog

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/KosMik1312/Buisness-Reminder-Bot/models"
)

// TimeLayout 提醒时间的输入格式（日.月.年 时:分）
const TimeLayout = "02.01.2006 15:04"

// State 会话所处的对话状态
type State int

const (
	StateIdle State = iota
	StateAwaitingTaskText
	StateAwaitingImportance
	StateAwaitingCompletionID
	StateAwaitingReminderTaskID
	StateAwaitingReminderDateTime
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTaskText:
		return "awaiting_task_text"
	case StateAwaitingImportance:
		return "awaiting_importance"
	case StateAwaitingCompletionID:
		return "awaiting_completion_id"
	case StateAwaitingReminderTaskID:
		return "awaiting_reminder_task_id"
	case StateAwaitingReminderDateTime:
		return "awaiting_reminder_datetime"
	}
	return "unknown"
}

var (
	ErrWrongState    = errors.New("当前状态不接受该输入")
	ErrEmptyText     = errors.New("任务内容不能为空")
	ErrBadImportance = errors.New("无效的重要程度")
	ErrBadTaskID     = errors.New("无效的任务ID")
	ErrBadTimeFormat = errors.New("时间格式不正确")
	ErrTimeInPast    = errors.New("提醒时间不能是过去的时间")
)

// Session 单个用户的会话状态与中间输入
type Session struct {
	State          State
	TaskText       string
	Importance     models.Importance
	ReminderTaskID uint
}

// Reset 清空会话，回到空闲状态
func (s *Session) Reset() {
	s.State = StateIdle
	s.TaskText = ""
	s.Importance = ""
	s.ReminderTaskID = 0
}

// BeginTaskCreation 进入录入任务内容状态
func (s *Session) BeginTaskCreation() {
	s.Reset()
	s.State = StateAwaitingTaskText
}

// BeginCompletion 进入录入待完成任务ID状态
func (s *Session) BeginCompletion() {
	s.Reset()
	s.State = StateAwaitingCompletionID
}

// BeginReminder 进入录入提醒目标任务ID状态
func (s *Session) BeginReminder() {
	s.Reset()
	s.State = StateAwaitingReminderTaskID
}

// AcceptTaskText 记录任务内容，推进到选择重要程度
func (s *Session) AcceptTaskText(text string) error {
	if s.State != StateAwaitingTaskText {
		return ErrWrongState
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.Reset()
		return ErrEmptyText
	}
	s.TaskText = text
	s.State = StateAwaitingImportance
	return nil
}

// AcceptImportance 校验重要程度选择，返回已积累的任务内容
func (s *Session) AcceptImportance(value string) (string, models.Importance, error) {
	if s.State != StateAwaitingImportance {
		return "", "", ErrWrongState
	}
	importance, err := models.ParseImportance(value)
	if err != nil {
		return "", "", ErrBadImportance
	}
	s.Importance = importance
	return s.TaskText, importance, nil
}

// AcceptCompletionID 解析待完成任务ID；解析失败直接重置会话
func (s *Session) AcceptCompletionID(text string) (uint, error) {
	if s.State != StateAwaitingCompletionID {
		return 0, ErrWrongState
	}
	id, err := parseTaskID(text)
	if err != nil {
		s.Reset()
		return 0, ErrBadTaskID
	}
	return id, nil
}

// AcceptReminderTaskID 解析提醒目标任务ID；解析失败直接重置会话。
// 任务是否存在由调用方查库确认，确认后调用 ConfirmReminderTask 推进状态。
func (s *Session) AcceptReminderTaskID(text string) (uint, error) {
	if s.State != StateAwaitingReminderTaskID {
		return 0, ErrWrongState
	}
	id, err := parseTaskID(text)
	if err != nil {
		s.Reset()
		return 0, ErrBadTaskID
	}
	return id, nil
}

// ConfirmReminderTask 记录提醒目标任务，推进到录入提醒时间
func (s *Session) ConfirmReminderTask(taskID uint) {
	s.ReminderTaskID = taskID
	s.State = StateAwaitingReminderDateTime
}

// AcceptReminderTime 解析提醒时间。格式错误或时间已过去时会话保持原状态，
// 允许用户直接重新输入，不需要从头开始整个流程。
func (s *Session) AcceptReminderTime(text string, now time.Time) (time.Time, error) {
	if s.State != StateAwaitingReminderDateTime {
		return time.Time{}, ErrWrongState
	}
	remindAt, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(text), now.Location())
	if err != nil {
		return time.Time{}, ErrBadTimeFormat
	}
	if !remindAt.After(now) {
		return time.Time{}, ErrTimeInPast
	}
	return remindAt, nil
}

func parseTaskID(text string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
