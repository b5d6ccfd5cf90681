package handlers

import (
	"net/http"
	"strconv"

	"transitbook/internal/domain"
	"transitbook/internal/domain/models"
	"transitbook/internal/http/middleware"
	"transitbook/internal/services"

	"github.com/gin-gonic/gin"
)

// GET /api/me/bookings
func (h *Handler) ListBookings(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": h.Store.GetBookings(middleware.Owner(c), limit)})
}

// GET /api/me/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id := c.Param("id")
	b, ok := h.Store.GetBooking(middleware.Owner(c), id)
	if !ok {
		RespondDomainError(c, domain.NotFoundError{Resource: "booking", ID: id})
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/me/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req services.BookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := h.bookingService(c).CreateBooking(c.Request.Context(), middleware.Owner(c), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// PATCH /api/me/bookings/:id edits booking details. Status changes carry
// refunds and points, so they go through /cancel and /confirm.
func (h *Handler) UpdateBooking(c *gin.Context) {
	var patch models.BookingPatch
	if !BindJSONOrError(c, &patch) {
		return
	}
	if patch.Status != nil {
		RespondDomainError(c, domain.ValidationError{Field: "status", Msg: "use the cancel or confirm endpoint"})
		return
	}
	id := c.Param("id")
	b, ok := h.Store.UpdateBooking(middleware.Owner(c), id, patch)
	if !ok {
		RespondDomainError(c, domain.NotFoundError{Resource: "booking", ID: id})
		return
	}
	c.JSON(http.StatusOK, b)
}

// DELETE /api/me/bookings/:id
func (h *Handler) DeleteBooking(c *gin.Context) {
	id := c.Param("id")
	if !h.Store.RemoveBooking(middleware.Owner(c), id) {
		RespondDomainError(c, domain.NotFoundError{Resource: "booking", ID: id})
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/me/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.bookingService(c).CancelBooking(c.Request.Context(), middleware.Owner(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type confirmRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// POST /api/me/bookings/:id/confirm
func (h *Handler) ConfirmBooking(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid payload", err)
			return
		}
	}
	b, err := h.bookingService(c).ConfirmBooking(c.Request.Context(), middleware.Owner(c), c.Param("id"), req.PaymentMethod)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/me/bookings/:id/e-ticket
func (h *Handler) BookingETicket(c *gin.Context) {
	docs := services.DocsService{Store: h.Store, RequestID: middleware.GetRequestID(c)}
	pdf, filename, err := docs.GenerateETicket(middleware.Owner(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Length", strconv.Itoa(len(pdf)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
