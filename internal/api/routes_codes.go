package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/handlers"
)

func registerCodeRoutes(api *gin.RouterGroup, handler *handlers.CodeHandler) {
	codes := api.Group("/codes")
	{
		codes.POST("", handler.Issue)
		codes.GET("", handler.Current)
		codes.DELETE("", handler.Deactivate)
		codes.POST("/rotate", handler.Rotate)
		codes.GET("/qr", handler.QR)
		codes.GET("/stats", handler.Stats)
	}
}
