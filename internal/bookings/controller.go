package bookings

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

func (c *Controller) GetBooking(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, err.Error())
		return
	}

	booking, err := c.service.GetByID(ctx.Request.Context(), id)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, ErrBookingNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get booking", nil, err.Error())
		return
	}

	if booking.ShopperID != ctx.GetString("shopper_id") {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Booking belongs to another shopper", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

func (c *Controller) GetBookingByRef(ctx *gin.Context) {
	ref := ctx.Param("ref")
	if ref == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Booking reference is required", nil, "missing booking reference")
		return
	}

	booking, err := c.service.GetByRef(ctx.Request.Context(), ref)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, ErrBookingNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get booking", nil, err.Error())
		return
	}

	// A reference is guessable enough that leaking existence matters.
	if booking.ShopperID != ctx.GetString("shopper_id") {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Failed to get booking", nil, ErrBookingNotFound.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

func (c *Controller) ListMyBookings(ctx *gin.Context) {
	shopperID := ctx.GetString("shopper_id")
	if shopperID == "" {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Shopper identity required", nil, nil)
		return
	}

	list, err := c.service.ListByShopper(ctx.Request.Context(), shopperID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list bookings", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", list, nil)
}
