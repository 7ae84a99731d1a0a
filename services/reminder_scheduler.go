package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"
	"github.com/KosMik1312/Buisness-Reminder-Bot/models"
	"github.com/KosMik1312/Buisness-Reminder-Bot/storage"

	"github.com/go-redis/redis/v8"
)

const (
	// reloadGrace 重启后重新装载提醒的宽限窗口，
	// 停机期间刚好到期的提醒仍会补发一次
	reloadGrace = 5 * time.Minute

	// firedMarkerTTL 触发标记的保留时间，防止宽限窗口内重复触发
	firedMarkerTTL = 48 * time.Hour
)

// ReminderNotifier 提醒送达的出口，由 Telegram 传输层实现
type ReminderNotifier interface {
	NotifyReminder(userID int64, task *models.Task) error
}

// ReminderScheduler 负责提醒的定时触发：每条提醒对应一个定时器，
// 触发时重新查库确认任务状态，任务已完成或已删除则静默跳过
type ReminderScheduler struct {
	store    *storage.TaskStore
	redis    *redis.Client
	notifier ReminderNotifier

	wg     sync.WaitGroup
	mu     sync.Mutex
	timers map[uint]*time.Timer
	closed bool
}

func NewReminderScheduler(store *storage.TaskStore, redisClient *redis.Client, notifier ReminderNotifier) *ReminderScheduler {
	return &ReminderScheduler{
		store:    store,
		redis:    redisClient,
		notifier: notifier,
		timers:   make(map[uint]*time.Timer),
	}
}

// Schedule 安排一条提醒。触发时间已过时立即触发一次，
// 状态机的校验应当已经拦截过去的时间，这里只是兜底。
func (s *ReminderScheduler) Schedule(reminder models.Reminder) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	delay := time.Until(reminder.RemindAt)
	s.wg.Add(1) // 增加 WaitGroup 计数

	if delay <= 0 {
		s.mu.Unlock()
		go s.fire(reminder)
		return
	}

	s.timers[reminder.ID] = time.AfterFunc(delay, func() {
		s.removeTimer(reminder.ID)
		s.fire(reminder)
	})
	s.mu.Unlock()

	config.Logger.Infow("提醒已安排",
		"reminderID", reminder.ID,
		"taskID", reminder.TaskID,
		"remindAt", reminder.RemindAt,
		"delay", delay.String(),
	)
}

// ReloadPending 启动时重新装载库中未触发的提醒。
// 进程内的定时器不会在重启后幸存，必须从持久化记录补建。
func (s *ReminderScheduler) ReloadPending() error {
	reminders, err := s.store.PendingReminders(time.Now().Add(-reloadGrace))
	if err != nil {
		return fmt.Errorf("装载待触发提醒失败: %v", err)
	}

	for _, reminder := range reminders {
		s.Schedule(reminder)
	}

	config.Logger.Infow("待触发提醒装载完成", "count", len(reminders))
	return nil
}

// fire 执行一次提醒触发
func (s *ReminderScheduler) fire(reminder models.Reminder) {
	defer s.wg.Done() // 完成后减少计数

	ctx := context.Background()

	// 先抢占触发标记，宽限窗口内重启补发时避免重复通知。
	// Redis 不可用时退化为尽力而为，照常发送。
	claimed, err := s.redis.SetNX(ctx, firedKey(reminder.ID), time.Now().Unix(), firedMarkerTTL).Result()
	if err != nil {
		config.Logger.Errorw("写入提醒触发标记失败", "error", err, "reminderID", reminder.ID)
	} else if !claimed {
		config.Logger.Debugw("提醒已触发过，跳过", "reminderID", reminder.ID)
		return
	}

	task, err := s.store.GetTask(reminder.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			// 任务已删除，静默跳过
			config.Logger.Debugw("提醒对应的任务不存在，跳过", "reminderID", reminder.ID, "taskID", reminder.TaskID)
			return
		}
		config.Logger.Errorw("触发提醒时查询任务失败", "error", err, "reminderID", reminder.ID, "taskID", reminder.TaskID)
		return
	}

	if task.Completed {
		// 任务已完成，抑制提醒
		config.Logger.Debugw("任务已完成，跳过提醒", "reminderID", reminder.ID, "taskID", task.ID)
		return
	}

	// 发送失败不重试，该提醒视为已消费
	if err := s.notifier.NotifyReminder(reminder.UserID, task); err != nil {
		config.Logger.Errorw("发送提醒失败",
			"error", err,
			"reminderID", reminder.ID,
			"taskID", task.ID,
			"userID", reminder.UserID,
		)
		return
	}

	config.Logger.Infow("提醒已发送", "reminderID", reminder.ID, "taskID", task.ID, "userID", reminder.UserID)
}

// Shutdown 停止尚未触发的定时器
func (s *ReminderScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
}

// Wait 等待所有触发中的提醒处理完成，用于优雅关闭
func (s *ReminderScheduler) Wait() {
	s.wg.Wait()
}

func (s *ReminderScheduler) removeTimer(reminderID uint) {
	s.mu.Lock()
	delete(s.timers, reminderID)
	s.mu.Unlock()
}

func firedKey(reminderID uint) string {
	return fmt.Sprintf("reminder:fired:%d", reminderID)
}
