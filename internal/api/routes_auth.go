package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/handlers"
)

func registerAuthRoutes(auth *gin.RouterGroup, handler *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.GET("/me", requireAuth, handler.Me)
}
