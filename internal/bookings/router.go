package bookings

import (
	"github.com/gin-gonic/gin"

	"slotify/internal/shared/middleware"
)

func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	group := rg.Group("/bookings")
	group.Use(middleware.JWTAuth())
	{
		group.GET("", controller.ListMyBookings)         // GET /api/v1/bookings
		group.GET("/:id", controller.GetBooking)         // GET /api/v1/bookings/:id
		group.GET("/ref/:ref", controller.GetBookingByRef) // GET /api/v1/bookings/ref/:ref
	}
}
