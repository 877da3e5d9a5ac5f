package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/handlers"
)

func registerConnectionRoutes(api *gin.RouterGroup, handler *handlers.ConnectionHandler) {
	api.GET("/connections", handler.ListContacts)

	requests := api.Group("/requests")
	{
		requests.POST("", handler.SubmitRequest)
		requests.GET("", handler.ListRequests)
		requests.POST("/:id/respond", handler.Respond)
	}

	api.POST("/invitations/:id/resend", handler.ResendInvitation)
}
