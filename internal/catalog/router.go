package catalog

import (
	"github.com/gin-gonic/gin"
)

func SetupCatalogRoutes(rg *gin.RouterGroup, controller *Controller) {
	items := rg.Group("/items")
	{
		items.GET("", controller.ListItems)                      // GET /api/v1/items
		items.GET("/:id", controller.GetItem)                    // GET /api/v1/items/:id
		items.GET("/:id/availability", controller.GetAvailability) // GET /api/v1/items/:id/availability?showtime_id=xxx
	}
}
