package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jomaguevco/chatdex-sub001/internal/http/handlers"
	"github.com/jomaguevco/chatdex-sub001/internal/http/middleware"
)

// BuildRouter assembles the HTTP surface: the inbound webhook, the health
// probe and the guarded admin API.
func BuildRouter(
	webhook *handlers.WebhookHandler,
	admin *handlers.AdminHandler,
	authMW *middleware.AuthMW,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	hooks := router.Group("/webhook")
	{
		hooks.POST("/message", webhook.HandleMessage)
		hooks.POST("/audio", webhook.HandleAudio)
	}

	router.POST("/admin/login", admin.Login)

	adminGroup := router.Group("/admin")
	adminGroup.Use(authMW.RequireAuth(), authMW.RequireAccess())
	{
		adminGroup.POST("/reindex", admin.Reindex)
		adminGroup.GET("/errors", admin.RecentErrors)
		adminGroup.GET("/sessions", admin.ActiveSessions)
		adminGroup.POST("/sessions/:phone/reset", admin.ResetSession)
		adminGroup.POST("/promotions", admin.AddPromotion)
		adminGroup.DELETE("/promotions/:id", admin.RemovePromotion)
		adminGroup.GET("/policies", admin.Policies)
	}

	return router
}
