package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/handlers"
)

func registerPublicRoutes(public *gin.RouterGroup, handler *handlers.PublicHandler) {
	profile := public.Group("/profile")
	{
		profile.GET("/:code", handler.ResolveProfile)
		profile.POST("/:code/invitations", handler.SubmitInvitation)
	}
}
