package router

import (
	"github.com/gin-gonic/gin"

	"tecbrilho.app/erika/internal/http/handler"
	"tecbrilho.app/erika/internal/http/handler/webhook"
	"tecbrilho.app/erika/internal/service"
)

type RouterConfig struct {
	CronSecret string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	statusHandler := handler.NewStatusHandler()
	router.GET("/", statusHandler.Root)
	router.GET("/health", statusHandler.Health)

	webhookHandler := webhook.NewKommoWebhookHandler(services.Conversation())
	router.POST("/kommo-webhook", webhookHandler.HandleEvent)

	cronHandler := handler.NewCronHandler(services.Reactivation(), cfg.CronSecret)
	router.POST("/cron/reactivate", cronHandler.HandleReactivate)
}
