package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-timeout-service/internal/config"
	"task-timeout-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		api.POST("/scan", AuthMiddleware(cfg.API.Token), h.RunScan)

		api.GET("/notifications", h.GetTimeoutNotifications)
		api.GET("/notifications/task/:task_id", h.GetTimeoutNotificationsByTask)
		api.GET("/tasks/:task_id/delays", h.GetTaskDelays)
	}

	r.GET("/ws/:user_id", h.ServeWS)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
