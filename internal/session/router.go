package session

import (
	"github.com/gin-gonic/gin"

	"slotify/internal/shared/middleware"
)

func SetupSessionRoutes(rg *gin.RouterGroup, controller *Controller) {
	sessions := rg.Group("/sessions")
	sessions.Use(middleware.JWTAuth())
	{
		sessions.POST("", controller.CreateSession)              // POST   /api/v1/sessions
		sessions.GET("/:id", controller.GetSession)              // GET    /api/v1/sessions/:id
		sessions.PUT("/:id/schedule", controller.SetSchedule)    // PUT    /api/v1/sessions/:id/schedule
		sessions.PUT("/:id/selection", controller.Select)        // PUT    /api/v1/sessions/:id/selection
		sessions.PUT("/:id/participants", controller.SetParticipant) // PUT /api/v1/sessions/:id/participants
		sessions.POST("/:id/advance", controller.Advance)        // POST   /api/v1/sessions/:id/advance
		sessions.POST("/:id/back", controller.Back)              // POST   /api/v1/sessions/:id/back
		sessions.POST("/:id/confirm", controller.Confirm)        // POST   /api/v1/sessions/:id/confirm
		sessions.DELETE("/:id", controller.CancelSession)        // DELETE /api/v1/sessions/:id
	}
}
