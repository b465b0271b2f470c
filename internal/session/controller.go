package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slotify/internal/catalog"
	"slotify/internal/finalize"
	"slotify/internal/shared/utils/response"
)

type Controller struct {
	manager *Manager
}

func NewController(manager *Manager) *Controller {
	return &Controller{manager: manager}
}

func shopperID(ctx *gin.Context) string {
	return ctx.GetString("shopper_id")
}

func (c *Controller) CreateSession(ctx *gin.Context) {
	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	session, err := c.manager.Create(ctx.Request.Context(), shopperID(ctx), req.ItemID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrItemNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to create session", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Session created successfully", session, nil)
}

func (c *Controller) GetSession(ctx *gin.Context) {
	session, err := c.manager.Get(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx))
	if err != nil {
		c.respondSessionError(ctx, "Failed to get session", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Session retrieved successfully", session, nil)
}

func (c *Controller) SetSchedule(ctx *gin.Context) {
	var req SetScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	session, err := c.manager.SetSchedule(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx), req.ShowtimeID)
	if err != nil {
		c.respondSessionError(ctx, "Failed to set showtime", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Showtime selected successfully", session, nil)
}

func (c *Controller) Select(ctx *gin.Context) {
	var req SelectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	var (
		session *Session
		err     error
	)
	if req.Quantity != nil {
		session, err = c.manager.SelectQuantity(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx), *req.Quantity)
	} else {
		session, err = c.manager.SelectUnits(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx), req.UnitIDs)
	}
	if err != nil {
		c.respondSessionError(ctx, "Failed to update selection", err)
		return
	}

	// Partial grants are a success with conflicts attached, not an error.
	message := "Selection updated successfully"
	if len(session.Conflicts) > 0 {
		message = "Selection updated with conflicts"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, session, nil)
}

func (c *Controller) SetParticipant(ctx *gin.Context) {
	var req ParticipantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	session, err := c.manager.SetParticipant(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx), req.UnitID, req.Participant)
	if err != nil {
		c.respondSessionError(ctx, "Failed to set participant", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Participant saved successfully", session, nil)
}

func (c *Controller) Advance(ctx *gin.Context) {
	session, err := c.manager.Advance(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx))
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			// The session snapshot shows which units were lost.
			response.RespondJSON(ctx, "error", http.StatusConflict, "Session holds expired", session, err.Error())
			return
		}
		c.respondSessionError(ctx, "Failed to advance session", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Session advanced successfully", session, nil)
}

func (c *Controller) Back(ctx *gin.Context) {
	session, err := c.manager.Back(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx))
	if err != nil {
		c.respondSessionError(ctx, "Failed to go back", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Session moved back successfully", session, nil)
}

func (c *Controller) Confirm(ctx *gin.Context) {
	var req ConfirmRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	session, result, err := c.manager.Confirm(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx), req.PaymentMethod)
	if err != nil {
		if _, ok := finalize.IsInventoryChanged(err); ok {
			response.RespondJSON(ctx, "error", http.StatusConflict, "Inventory changed during confirmation", session, err.Error())
			return
		}
		if errors.Is(err, finalize.ErrPaymentFailed) {
			response.RespondJSON(ctx, "error", http.StatusPaymentRequired, "Payment failed", session, err.Error())
			return
		}
		var pe *finalize.PersistenceError
		if errors.As(err, &pe) {
			response.RespondJSON(ctx, "error", http.StatusInternalServerError,
				"Payment captured but booking could not be recorded; contact support", session, err.Error())
			return
		}
		c.respondSessionError(ctx, "Failed to confirm session", err)
		return
	}

	resp := ConfirmResponse{
		Session:    session,
		BookingID:  result.Booking.ID.String(),
		BookingRef: result.Booking.BookingRef,
		PaymentRef: result.Authorization.Reference,
		Total:      result.Booking.Total,
		Currency:   result.Booking.Currency,
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Booking confirmed successfully", resp, nil)
}

func (c *Controller) CancelSession(ctx *gin.Context) {
	if err := c.manager.Cancel(ctx.Request.Context(), ctx.Param("id"), shopperID(ctx)); err != nil {
		c.respondSessionError(ctx, "Failed to cancel session", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Session cancelled successfully", nil, nil)
}

func (c *Controller) respondSessionError(ctx *gin.Context, message string, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, ErrNotYourSession):
		statusCode = http.StatusForbidden
	case errors.Is(err, ErrWrongStage),
		errors.Is(err, ErrSessionFinished),
		errors.Is(err, ErrScheduleRequired),
		errors.Is(err, ErrNoUnitsSelected),
		errors.Is(err, ErrParticipantsIncomplete),
		errors.Is(err, ErrUnknownShowtime):
		statusCode = http.StatusUnprocessableEntity
	}
	response.RespondJSON(ctx, "error", statusCode, message, nil, err.Error())
}
