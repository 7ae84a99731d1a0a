package bot

import (
	"context"
	"fmt"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"
	"github.com/KosMik1312/Buisness-Reminder-Bot/controllers"
	"github.com/KosMik1312/Buisness-Reminder-Bot/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot Telegram 传输层：负责消息收发、键盘渲染和命令注册，
// 收到的更新统一翻译成编排层的类型化事件
type Bot struct {
	api        *tgbotapi.BotAPI
	controller *controllers.DialogController
}

func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("创建Telegram客户端失败: %v", err)
	}
	return &Bot{api: api}, nil
}

// AttachController 绑定编排层。Bot 同时是编排层的消息出口，
// 两者互相引用，只能在构造完成后再绑定。
func (b *Bot) AttachController(controller *controllers.DialogController) {
	b.controller = controller
}

// Username 返回机器人账号名
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SetupCommands 注册命令菜单
func (b *Bot) SetupCommands() error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "开始使用"},
		tgbotapi.BotCommand{Command: "todo", Description: "新建任务"},
		tgbotapi.BotCommand{Command: "list", Description: "未完成的任务"},
		tgbotapi.BotCommand{Command: "listall", Description: "全部任务"},
		tgbotapi.BotCommand{Command: "retask", Description: "完成任务"},
		tgbotapi.BotCommand{Command: "remind", Description: "设置提醒"},
		tgbotapi.BotCommand{Command: "help", Description: "使用说明"},
	)
	if _, err := b.api.Request(commands); err != nil {
		return fmt.Errorf("注册命令菜单失败: %v", err)
	}
	return nil
}

// SetupDescription 注册机器人简介，开始对话前展示给用户
func (b *Bot) SetupDescription() error {
	params := tgbotapi.Params{
		"description": "记录任务、跟踪完成情况、按时提醒的任务管理小助手！",
	}
	if _, err := b.api.MakeRequest("setMyDescription", params); err != nil {
		return fmt.Errorf("注册机器人简介失败: %v", err)
	}
	return nil
}

// SetupWebhook 向 Telegram 注册回调地址
func (b *Bot) SetupWebhook(baseURL string) error {
	webhook, err := tgbotapi.NewWebhook(fmt.Sprintf("%s/webhook/%s", baseURL, b.api.Token))
	if err != nil {
		return fmt.Errorf("构造Webhook配置失败: %v", err)
	}
	if _, err := b.api.Request(webhook); err != nil {
		return fmt.Errorf("注册Webhook失败: %v", err)
	}
	return nil
}

// Token 返回机器人令牌，Webhook 路由用它校验来源
func (b *Bot) Token() string {
	return b.api.Token
}

// Run 以长轮询方式接收更新，直到 ctx 结束
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)
	config.Logger.Infow("开始长轮询", "username", b.Username())

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// 各用户的消息互不相关，可以并发处理；
			// 同一用户内部由会话锁保证串行
			go b.HandleUpdate(update)
		}
	}
}

// HandleUpdate 分类一条更新并派发到编排层
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	// 单条更新的处理故障只影响该次会话，不能拖垮整个进程
	defer func() {
		if r := recover(); r != nil {
			config.Logger.Errorw("处理更新时发生panic", "panic", r, "updateID", update.UpdateID)
		}
	}()

	switch {
	case update.Message != nil:
		chatID := update.Message.Chat.ID
		if update.Message.IsCommand() {
			b.handleCommand(chatID, update.Message.Command())
			return
		}
		b.controller.HandleText(chatID, update.Message.Text)

	case update.CallbackQuery != nil:
		// 先应答回调，去掉客户端的加载态
		if _, err := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			config.Logger.Errorw("应答回调失败", "error", err)
		}
		chatID, ok := callbackChatID(update.CallbackQuery)
		if !ok {
			config.Logger.Warnw("回调缺少会话来源，丢弃", "data", update.CallbackQuery.Data)
			return
		}
		b.handleCallback(chatID, update.CallbackQuery.Data)
	}
}

// callbackChatID 确定回调所属的会话。原消息超过48小时（或内联模式）时
// Telegram 不再附带 message，此时退回到点击按钮的用户本人。
func callbackChatID(callback *tgbotapi.CallbackQuery) (int64, bool) {
	if callback.Message != nil {
		return callback.Message.Chat.ID, true
	}
	if callback.From != nil {
		return callback.From.ID, true
	}
	return 0, false
}

func (b *Bot) handleCommand(chatID int64, command string) {
	switch command {
	case "start":
		b.controller.HandleTrigger(chatID, controllers.TriggerStart)
	case "help":
		b.controller.HandleTrigger(chatID, controllers.TriggerHelp)
	case "todo":
		b.controller.HandleTrigger(chatID, controllers.TriggerNewTask)
	case "list":
		b.controller.HandleTrigger(chatID, controllers.TriggerListOpen)
	case "listall":
		b.controller.HandleTrigger(chatID, controllers.TriggerListAll)
	case "retask":
		b.controller.HandleTrigger(chatID, controllers.TriggerCompleteTask)
	case "remind":
		b.controller.HandleTrigger(chatID, controllers.TriggerNewReminder)
	default:
		b.controller.HandleTrigger(chatID, controllers.TriggerHelp)
	}
}

func (b *Bot) handleCallback(chatID int64, data string) {
	switch data {
	case controllers.CallbackNewTask:
		b.controller.HandleTrigger(chatID, controllers.TriggerNewTask)
	case controllers.CallbackListOpen:
		b.controller.HandleTrigger(chatID, controllers.TriggerListOpen)
	case controllers.CallbackListAll:
		b.controller.HandleTrigger(chatID, controllers.TriggerListAll)
	case controllers.CallbackComplete:
		b.controller.HandleTrigger(chatID, controllers.TriggerCompleteTask)
	case controllers.CallbackNewReminder:
		b.controller.HandleTrigger(chatID, controllers.TriggerNewReminder)
	case controllers.CallbackHelp:
		b.controller.HandleTrigger(chatID, controllers.TriggerHelp)
	case string(models.ImportanceHigh), string(models.ImportanceMedium), string(models.ImportanceLow):
		b.controller.HandleImportance(chatID, data)
	default:
		config.Logger.Warnw("未知的回调数据", "chatID", chatID, "data", data)
	}
}

// Send 实现编排层的消息出口
func (b *Bot) Send(chatID int64, text string, keyboard controllers.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = toInlineKeyboard(keyboard)
	}
	_, err := b.api.Send(msg)
	return err
}

// NotifyReminder 实现提醒调度器的送达出口
func (b *Bot) NotifyReminder(userID int64, task *models.Task) error {
	text := fmt.Sprintf("⏰ 提醒：任务「%s」\nID: %d\n重要程度: %s", task.Text, task.ID, task.Importance.Label())
	return b.Send(userID, text, nil)
}

func toInlineKeyboard(keyboard controllers.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
