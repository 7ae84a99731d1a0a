package storage

import (
	"errors"
	"time"

	"github.com/KosMik1312/Buisness-Reminder-Bot/models"

	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 引用的任务不存在
	ErrTaskNotFound = errors.New("任务不存在")

	// ErrReminderInPast 提醒的触发时间必须严格晚于创建时间
	ErrReminderInPast = errors.New("提醒时间已过去")
)

// TaskStore 任务与提醒的持久化存取层
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

// CreateTask 创建任务，创建时间截断到分钟
func (s *TaskStore) CreateTask(text string, importance models.Importance) (*models.Task, error) {
	task := models.Task{
		Text:        text,
		CreatedDate: time.Now().Truncate(time.Minute),
		Importance:  importance,
		Completed:   false,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks 按完成状态筛选任务，按ID升序返回
func (s *TaskStore) ListTasks(completed bool) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.Where("completed = ?", completed).Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListAllTasks 返回所有任务，按ID升序
func (s *TaskStore) ListAllTasks() ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask 按ID查询任务
func (s *TaskStore) GetTask(id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// CompleteTask 将任务标记为已完成。重复标记视为成功的空操作，
// 完成标记只会从 false 变为 true，不会回退。
func (s *TaskStore) CompleteTask(id uint) error {
	var task models.Task
	if err := s.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	if task.Completed {
		return nil
	}
	return s.db.Model(&task).Update("completed", true).Error
}

// CreateReminder 为已存在的任务创建提醒。任务不存在时返回 ErrTaskNotFound，
// 触发时间不在未来时返回 ErrReminderInPast（对话层已做过校验，这里把
// 不变式钉在数据所在的层）。
func (s *TaskStore) CreateReminder(taskID uint, remindAt time.Time, userID int64) (*models.Reminder, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}
	if !remindAt.After(time.Now()) {
		return nil, ErrReminderInPast
	}
	reminder := models.Reminder{
		TaskID:   taskID,
		RemindAt: remindAt,
		UserID:   userID,
	}
	if err := s.db.Create(&reminder).Error; err != nil {
		return nil, err
	}
	return &reminder, nil
}

// PendingReminders 返回触发时间晚于 since 的所有提醒，用于启动时重新装载
func (s *TaskStore) PendingReminders(since time.Time) ([]models.Reminder, error) {
	var reminders []models.Reminder
	if err := s.db.Where("remind_at > ?", since).Order("id asc").Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}
