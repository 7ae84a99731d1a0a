package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"
	"github.com/KosMik1312/Buisness-Reminder-Bot/dialog"
	"github.com/KosMik1312/Buisness-Reminder-Bot/models"
	"github.com/KosMik1312/Buisness-Reminder-Bot/storage"
)

// Trigger 入口动作，命令与菜单按钮在传输层统一翻译成该枚举
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerHelp
	TriggerNewTask
	TriggerListOpen
	TriggerListAll
	TriggerCompleteTask
	TriggerNewReminder
)

// 菜单按钮的回调数据
const (
	CallbackNewTask     = "todo"
	CallbackListOpen    = "list"
	CallbackListAll     = "listall"
	CallbackComplete    = "retask"
	CallbackNewReminder = "remind"
	CallbackHelp        = "help"
)

// Button 键盘按钮（文案 + 回调数据）
type Button struct {
	Label string
	Data  string
}

// Keyboard 按行排列的内联键盘
type Keyboard [][]Button

// MessageSender 消息出口，由 Telegram 传输层实现
type MessageSender interface {
	Send(chatID int64, text string, keyboard Keyboard) error
}

// ReminderScheduler 提醒安排入口
type ReminderScheduler interface {
	Schedule(reminder models.Reminder)
}

// DialogController 对话编排层：把入站事件映射到会话状态机的迁移，
// 并执行存储与提醒安排等终结动作
type DialogController struct {
	store     *storage.TaskStore
	sessions  *dialog.SessionStore
	scheduler ReminderScheduler
	sender    MessageSender
}

func NewDialogController(store *storage.TaskStore, sessions *dialog.SessionStore, scheduler ReminderScheduler, sender MessageSender) *DialogController {
	return &DialogController{
		store:     store,
		sessions:  sessions,
		scheduler: scheduler,
		sender:    sender,
	}
}

// MainKeyboard 主菜单键盘
func MainKeyboard() Keyboard {
	return Keyboard{
		{
			{Label: "新建任务", Data: CallbackNewTask},
			{Label: "任务列表", Data: CallbackListOpen},
		},
		{
			{Label: "全部任务", Data: CallbackListAll},
			{Label: "完成任务", Data: CallbackComplete},
		},
		{
			{Label: "设置提醒", Data: CallbackNewReminder},
			{Label: "帮助", Data: CallbackHelp},
		},
	}
}

// ImportanceKeyboard 重要程度选择键盘
func ImportanceKeyboard() Keyboard {
	return Keyboard{
		{{Label: "非常重要", Data: string(models.ImportanceHigh)}},
		{{Label: "一般重要", Data: string(models.ImportanceMedium)}},
		{{Label: "不太重要", Data: string(models.ImportanceLow)}},
	}
}

const helpText = "📝 可用命令：\n" +
	"/todo - 新建任务\n" +
	"/list - 查看未完成的任务\n" +
	"/listall - 查看全部任务\n" +
	"/retask - 将任务标记为完成\n" +
	"/remind - 为任务设置提醒"

// HandleTrigger 处理命令与菜单按钮
func (c *DialogController) HandleTrigger(userID int64, trigger Trigger) {
	config.Logger.Infow("收到入口动作", "userID", userID, "trigger", trigger)

	switch trigger {
	case TriggerStart:
		c.send(userID,
			"👋 你好！我是任务管理小助手。\n"+
				"我可以帮你记录任务、跟踪完成情况、按时提醒。\n"+
				"使用 /help 查看全部命令。",
			MainKeyboard())

	case TriggerHelp:
		c.send(userID, helpText, MainKeyboard())

	case TriggerNewTask:
		c.sessions.With(userID, func(s *dialog.Session) {
			s.BeginTaskCreation()
		})
		c.send(userID, "请输入任务内容：", nil)

	case TriggerListOpen:
		tasks, err := c.store.ListTasks(false)
		if err != nil {
			c.reportStoreFailure(userID, err)
			return
		}
		if len(tasks) == 0 {
			c.send(userID, "当前没有进行中的任务！", MainKeyboard())
			return
		}
		c.send(userID, "📋 进行中的任务：\n\n"+renderTasks(tasks, false), MainKeyboard())

	case TriggerListAll:
		tasks, err := c.store.ListAllTasks()
		if err != nil {
			c.reportStoreFailure(userID, err)
			return
		}
		if len(tasks) == 0 {
			c.send(userID, "任务列表是空的！", MainKeyboard())
			return
		}
		c.send(userID, "📋 全部任务：\n\n"+renderTasks(tasks, true), MainKeyboard())

	case TriggerCompleteTask:
		c.sessions.With(userID, func(s *dialog.Session) {
			s.BeginCompletion()
		})
		c.send(userID, "请输入要标记为完成的任务ID：", nil)

	case TriggerNewReminder:
		tasks, err := c.store.ListTasks(false)
		if err != nil {
			c.reportStoreFailure(userID, err)
			return
		}
		if len(tasks) == 0 {
			// 没有可提醒的任务，会话保持空闲
			c.send(userID, "当前没有进行中的任务！", MainKeyboard())
			return
		}
		c.sessions.With(userID, func(s *dialog.Session) {
			s.BeginReminder()
		})
		c.send(userID, "📋 进行中的任务：\n\n"+renderTasks(tasks, false)+"请输入要设置提醒的任务ID：", nil)
	}
}

// HandleText 处理自由文本输入，按会话当前状态分发
func (c *DialogController) HandleText(userID int64, text string) {
	c.sessions.With(userID, func(s *dialog.Session) {
		switch s.State {
		case dialog.StateIdle:
			c.send(userID, "请使用下方按钮或 /help 查看可用命令。", MainKeyboard())

		case dialog.StateAwaitingTaskText:
			if err := s.AcceptTaskText(text); err != nil {
				c.send(userID, "任务内容不能为空！", MainKeyboard())
				return
			}
			c.send(userID, "请选择任务的重要程度：", ImportanceKeyboard())

		case dialog.StateAwaitingImportance:
			// 该状态只接受按钮选择
			c.send(userID, "请使用按钮选择任务的重要程度：", ImportanceKeyboard())

		case dialog.StateAwaitingCompletionID:
			c.completeTask(userID, s, text)

		case dialog.StateAwaitingReminderTaskID:
			c.chooseReminderTask(userID, s, text)

		case dialog.StateAwaitingReminderDateTime:
			c.scheduleReminder(userID, s, text)
		}
	})
}

// HandleImportance 处理重要程度按钮
func (c *DialogController) HandleImportance(userID int64, value string) {
	c.sessions.With(userID, func(s *dialog.Session) {
		text, importance, err := s.AcceptImportance(value)
		if err != nil {
			if errors.Is(err, dialog.ErrWrongState) {
				// 不在选择重要程度的状态，忽略过期的按钮点击
				config.Logger.Debugw("忽略过期的重要程度选择", "userID", userID, "value", value)
				return
			}
			s.Reset()
			c.send(userID, "无效的重要程度，请重新开始。", MainKeyboard())
			return
		}

		task, err := c.store.CreateTask(text, importance)
		if err != nil {
			s.Reset()
			c.reportStoreFailure(userID, err)
			return
		}

		config.Logger.Infow("任务创建成功", "userID", userID, "taskID", task.ID, "importance", importance)
		s.Reset()
		c.send(userID, "任务添加成功！", MainKeyboard())
	})
}

// completeTask 完成任务流程的终结动作
func (c *DialogController) completeTask(userID int64, s *dialog.Session, text string) {
	id, err := s.AcceptCompletionID(text)
	if err != nil {
		// 解析失败会话已重置，避免卡死在等待输入的状态
		c.send(userID, "请输入有效的任务ID！", MainKeyboard())
		return
	}

	err = c.store.CompleteTask(id)
	s.Reset()
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			c.send(userID, fmt.Sprintf("未找到ID为 %d 的任务！", id), MainKeyboard())
			return
		}
		c.reportStoreFailure(userID, err)
		return
	}

	config.Logger.Infow("任务已完成", "userID", userID, "taskID", id)
	c.send(userID, "任务已标记为完成！", MainKeyboard())
}

// chooseReminderTask 确定提醒的目标任务
func (c *DialogController) chooseReminderTask(userID int64, s *dialog.Session, text string) {
	id, err := s.AcceptReminderTaskID(text)
	if err != nil {
		c.send(userID, "请输入有效的任务ID！", MainKeyboard())
		return
	}

	if _, err := c.store.GetTask(id); err != nil {
		s.Reset()
		if errors.Is(err, storage.ErrTaskNotFound) {
			c.send(userID, fmt.Sprintf("未找到ID为 %d 的任务！", id), MainKeyboard())
			return
		}
		c.reportStoreFailure(userID, err)
		return
	}

	s.ConfirmReminderTask(id)
	c.send(userID, "请输入提醒时间，格式为 DD.MM.YYYY HH:MM（例如 31.12.2026 15:30）：", nil)
}

// scheduleReminder 提醒流程的终结动作
func (c *DialogController) scheduleReminder(userID int64, s *dialog.Session, text string) {
	remindAt, err := s.AcceptReminderTime(text, time.Now())
	if err != nil {
		// 格式错误和过去的时间都允许原地重新输入
		if errors.Is(err, dialog.ErrTimeInPast) {
			c.send(userID, "提醒时间不能是过去的时间，请重新输入：", nil)
			return
		}
		c.send(userID, "时间格式不正确，请按 DD.MM.YYYY HH:MM 重新输入：", nil)
		return
	}

	reminder, err := c.store.CreateReminder(s.ReminderTaskID, remindAt, userID)
	if err != nil {
		s.Reset()
		if errors.Is(err, storage.ErrTaskNotFound) {
			c.send(userID, "任务已不存在，无法设置提醒。", MainKeyboard())
			return
		}
		c.reportStoreFailure(userID, err)
		return
	}

	c.scheduler.Schedule(*reminder)
	config.Logger.Infow("提醒创建成功", "userID", userID, "reminderID", reminder.ID, "remindAt", remindAt)
	s.Reset()
	c.send(userID, fmt.Sprintf("提醒设置成功！将于 %s 提醒你。", remindAt.Format(dialog.TimeLayout)), MainKeyboard())
}

// reportStoreFailure 存储故障统一按通用错误反馈，不自动重试
func (c *DialogController) reportStoreFailure(userID int64, err error) {
	config.Logger.Errorw("存储操作失败", "error", err, "userID", userID)
	c.send(userID, "操作失败，请稍后再试。", MainKeyboard())
}

func (c *DialogController) send(userID int64, text string, keyboard Keyboard) {
	if err := c.sender.Send(userID, text, keyboard); err != nil {
		config.Logger.Errorw("发送消息失败", "error", err, "userID", userID)
	}
}

// renderTasks 渲染任务列表
func renderTasks(tasks []models.Task, withStatus bool) string {
	var builder strings.Builder
	for _, task := range tasks {
		builder.WriteString(fmt.Sprintf("ID: %d\n", task.ID))
		builder.WriteString(fmt.Sprintf("任务: %s\n", task.Text))
		builder.WriteString(fmt.Sprintf("创建时间: %s\n", task.CreatedDate.Format("02.01.2006 15:04")))
		builder.WriteString(fmt.Sprintf("重要程度: %s\n", task.Importance.Label()))
		if withStatus {
			status := "❌ 未完成"
			if task.Completed {
				status = "✅ 已完成"
			}
			builder.WriteString(fmt.Sprintf("状态: %s\n", status))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}
