package controllers

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"
	"github.com/KosMik1312/Buisness-Reminder-Bot/dialog"
	"github.com/KosMik1312/Buisness-Reminder-Bot/models"
	"github.com/KosMik1312/Buisness-Reminder-Bot/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	config.Logger = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

// fakeSender 记录发出的消息
type fakeSender struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeSender) Send(chatID int64, text string, keyboard Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

// fakeScheduler 记录安排的提醒
type fakeScheduler struct {
	mu        sync.Mutex
	reminders []models.Reminder
}

func (f *fakeScheduler) Schedule(reminder models.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, reminder)
}

func newTestController(t *testing.T) (*DialogController, *storage.TaskStore, *dialog.SessionStore, *fakeSender, *fakeScheduler) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Task{}, &models.Reminder{}))

	store := storage.NewTaskStore(db)
	sessions := dialog.NewSessionStore()
	sender := &fakeSender{}
	scheduler := &fakeScheduler{}
	controller := NewDialogController(store, sessions, scheduler, sender)
	return controller, store, sessions, sender, scheduler
}

const testUser int64 = 100

func TestTaskCreationEndToEnd(t *testing.T) {
	controller, store, sessions, sender, _ := newTestController(t)

	controller.HandleTrigger(testUser, TriggerNewTask)
	assert.Equal(t, "请输入任务内容：", sender.last())

	controller.HandleText(testUser, "Buy milk")
	assert.Equal(t, dialog.StateAwaitingImportance, sessions.Snapshot(testUser).State)

	controller.HandleImportance(testUser, "high")
	assert.Equal(t, "任务添加成功！", sender.last())

	tasks, err := store.ListAllTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Text)
	assert.Equal(t, models.ImportanceHigh, tasks[0].Importance)
	assert.False(t, tasks[0].Completed)

	// 流程结束后会话回到空闲
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)
}

func TestCompletionNonIntegerResetsAndKeepsTable(t *testing.T) {
	controller, store, sessions, sender, _ := newTestController(t)

	task, err := store.CreateTask("写周报", models.ImportanceMedium)
	require.NoError(t, err)

	controller.HandleTrigger(testUser, TriggerCompleteTask)
	controller.HandleText(testUser, "abc")

	assert.Equal(t, "请输入有效的任务ID！", sender.last())
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)

	// 任务表不受影响
	got, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestCompletionFlow(t *testing.T) {
	controller, store, sessions, sender, _ := newTestController(t)

	task, err := store.CreateTask("写周报", models.ImportanceMedium)
	require.NoError(t, err)

	controller.HandleTrigger(testUser, TriggerCompleteTask)
	controller.HandleText(testUser, strconv.Itoa(int(task.ID)))

	assert.Equal(t, "任务已标记为完成！", sender.last())
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)

	got, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
}

func TestCompletionUnknownID(t *testing.T) {
	controller, _, sessions, sender, _ := newTestController(t)

	controller.HandleTrigger(testUser, TriggerCompleteTask)
	controller.HandleText(testUser, "42")

	assert.Equal(t, "未找到ID为 42 的任务！", sender.last())
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)
}

func TestReminderWithoutOpenTasks(t *testing.T) {
	controller, _, sessions, sender, _ := newTestController(t)

	controller.HandleTrigger(testUser, TriggerNewReminder)

	assert.Equal(t, "当前没有进行中的任务！", sender.last())
	// 没有可提醒的任务时不进入提醒流程
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)
}

func TestReminderEndToEnd(t *testing.T) {
	controller, store, sessions, sender, scheduler := newTestController(t)

	task, err := store.CreateTask("交房租", models.ImportanceHigh)
	require.NoError(t, err)

	controller.HandleTrigger(testUser, TriggerNewReminder)
	assert.Equal(t, dialog.StateAwaitingReminderTaskID, sessions.Snapshot(testUser).State)

	controller.HandleText(testUser, strconv.Itoa(int(task.ID)))
	assert.Equal(t, dialog.StateAwaitingReminderDateTime, sessions.Snapshot(testUser).State)

	// 格式错误：原地重试
	controller.HandleText(testUser, "2030-12-31 12:00")
	assert.Equal(t, "时间格式不正确，请按 DD.MM.YYYY HH:MM 重新输入：", sender.last())
	assert.Equal(t, dialog.StateAwaitingReminderDateTime, sessions.Snapshot(testUser).State)

	// 过去的时间：原地重试
	controller.HandleText(testUser, "01.01.2020 12:00")
	assert.Equal(t, "提醒时间不能是过去的时间，请重新输入：", sender.last())
	assert.Equal(t, dialog.StateAwaitingReminderDateTime, sessions.Snapshot(testUser).State)

	// 合法的未来时间
	controller.HandleText(testUser, "31.12.2030 12:00")
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	require.Len(t, scheduler.reminders, 1)
	assert.Equal(t, task.ID, scheduler.reminders[0].TaskID)
	assert.Equal(t, testUser, scheduler.reminders[0].UserID)

	reminders, err := store.PendingReminders(task.CreatedDate)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
}

func TestReminderUnknownTaskResets(t *testing.T) {
	controller, store, sessions, sender, scheduler := newTestController(t)

	_, err := store.CreateTask("交房租", models.ImportanceHigh)
	require.NoError(t, err)

	controller.HandleTrigger(testUser, TriggerNewReminder)
	controller.HandleText(testUser, "42")

	assert.Equal(t, "未找到ID为 42 的任务！", sender.last())
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)
	assert.Empty(t, scheduler.reminders)
}

func TestIdleTextShowsHint(t *testing.T) {
	controller, _, sessions, sender, _ := newTestController(t)

	controller.HandleText(testUser, "随便说点什么")

	assert.Equal(t, "请使用下方按钮或 /help 查看可用命令。", sender.last())
	assert.Equal(t, dialog.StateIdle, sessions.Snapshot(testUser).State)
}

func TestStaleImportanceCallbackIgnored(t *testing.T) {
	controller, store, _, sender, _ := newTestController(t)

	// 空闲状态下点击过期的重要程度按钮：不回复、不建任务
	controller.HandleImportance(testUser, "high")

	assert.Empty(t, sender.messages)
	tasks, err := store.ListAllTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
