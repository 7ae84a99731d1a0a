package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KosMik1312/Buisness-Reminder-Bot/bot"
	"github.com/KosMik1312/Buisness-Reminder-Bot/config"
	"github.com/KosMik1312/Buisness-Reminder-Bot/controllers"
	"github.com/KosMik1312/Buisness-Reminder-Bot/dialog"
	"github.com/KosMik1312/Buisness-Reminder-Bot/middleware"
	"github.com/KosMik1312/Buisness-Reminder-Bot/routes"
	"github.com/KosMik1312/Buisness-Reminder-Bot/services"
	"github.com/KosMik1312/Buisness-Reminder-Bot/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化日志
	if err := config.InitLogger(); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer config.Logger.Sync()

	// 加载配置
	conf, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
		return
	}

	// 初始化数据库
	if err := config.InitDB(conf); err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
		return
	}

	// 初始化Redis
	if err := config.InitRedis(conf); err != nil {
		log.Fatalf("无法初始化Redis: %v", err)
		return
	}

	// 初始化Telegram客户端
	tgBot, err := bot.NewBot(conf.BotToken)
	if err != nil {
		log.Fatalf("无法初始化Telegram客户端: %v", err)
	}

	// 组装各层
	store := storage.NewTaskStore(config.DB)
	sessions := dialog.NewSessionStore()
	scheduler := services.NewReminderScheduler(store, config.RedisClient, tgBot)
	controller := controllers.NewDialogController(store, sessions, scheduler, tgBot)
	tgBot.AttachController(controller)

	// 注册命令菜单和机器人简介
	if err := tgBot.SetupCommands(); err != nil {
		config.Logger.Errorw("注册命令菜单失败", "error", err)
	}
	if err := tgBot.SetupDescription(); err != nil {
		config.Logger.Errorw("注册机器人简介失败", "error", err)
	}

	// 重启后补建库中未触发的提醒
	if err := scheduler.ReloadPending(); err != nil {
		log.Fatalf("无法装载待触发提醒: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *http.Server

	if conf.RunMode == "webhook" {
		// Webhook 模式：由 Telegram 回调推送更新
		if err := tgBot.SetupWebhook(conf.WebhookURL); err != nil {
			log.Fatalf("无法注册Webhook: %v", err)
		}

		// 设置Gin模式
		if conf.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		r := gin.New()
		middleware.SetupMiddleware(r)
		routes.RegisterRoutes(r, tgBot)

		srv = &http.Server{
			Addr:    ":" + conf.ServerPort,
			Handler: r,
		}

		go func() {
			log.Printf("启动Webhook服务器，监听端口: %s", conf.ServerPort)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("服务器启动失败: %v", err)
			}
		}()
	} else {
		// 长轮询模式
		go tgBot.Run(ctx)
	}

	// 等待中断信号以实现优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭...")

	cancel()

	if srv != nil {
		// 创建超时上下文
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// 优雅关闭服务器
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("服务器关闭失败: %v", err)
		}
	}

	// 停掉未触发的定时器，等待触发中的提醒处理完成
	log.Println("正在等待所有后台任务完成...")
	scheduler.Shutdown()
	scheduler.Wait()
	log.Println("所有后台任务已完成")
}
