package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotify/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) ListItems(ctx *gin.Context) {
	items, err := c.service.ListItems(ctx.Request.Context())
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list items", nil, err.Error())
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Items retrieved successfully", items, nil)
}

func (c *Controller) GetItem(ctx *gin.Context) {
	itemID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid item ID", nil, err.Error())
		return
	}

	item, err := c.service.GetItem(ctx.Request.Context(), itemID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, ErrItemNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get item", nil, err.Error())
		return
	}

	resp := toItemResponse(item)
	response.RespondJSON(ctx, "success", http.StatusOK, "Item retrieved successfully", resp, nil)
}

func (c *Controller) GetAvailability(ctx *gin.Context) {
	itemID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid item ID", nil, err.Error())
		return
	}

	var showtimeID *uuid.UUID
	if raw := ctx.Query("showtime_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid showtime ID", nil, err.Error())
			return
		}
		showtimeID = &parsed
	}

	availability, err := c.service.GetAvailability(ctx.Request.Context(), itemID, showtimeID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, ErrItemNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get availability", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}
