package routes

import (
	"net/http"

	"github.com/KosMik1312/Buisness-Reminder-Bot/config"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler Webhook 更新的处理入口，由 bot.Bot 实现
type UpdateHandler interface {
	Token() string
	HandleUpdate(update tgbotapi.Update)
}

// RegisterRoutes 注册 Webhook 模式下的路由
func RegisterRoutes(r *gin.Engine, b UpdateHandler) {
	// Telegram 回调入口，路径中的令牌用于校验来源
	r.POST("/webhook/:token", func(c *gin.Context) {
		if c.Param("token") != b.Token() {
			c.Status(http.StatusNotFound)
			return
		}

		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			config.Logger.Errorw("解析Webhook更新失败", "error", err)
			c.Status(http.StatusBadRequest)
			return
		}

		go b.HandleUpdate(update)
		c.Status(http.StatusOK)
	})

	// 测试路由
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
}
