package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	profile := api.Group("/profile")
	{
		profile.GET("/preview", handler.Preview)
		profile.GET("/visibility", handler.GetVisibility)
		profile.PUT("/visibility", handler.UpdateVisibility)
	}
}
