package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/health"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

// RegisterHealthRoutes: 상태 확인 라우트를 등록합니다.
func RegisterHealthRoutes(router *gin.Engine, cfg *config.Config, sessions *session.Store, ledger *usage.Ledger) {
	// Liveness: 플랫폼 프로브가 어느 경로를 찌르든 프로세스가 살아
	// 있으면 200을 돌려준다.
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.GET("/health", func(c *gin.Context) {
		payload := health.Collect(cfg, sessions, ledger)
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/health/ready", func(c *gin.Context) {
		payload := health.Collect(cfg, sessions, ledger)
		status := http.StatusOK
		if payload.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})
}
