package handlers

import (
	"net/http"
	"strconv"

	"transitbook/internal/events"
	"transitbook/internal/http/middleware"
	"transitbook/internal/repositories"
	"transitbook/internal/services"
	"transitbook/internal/store"

	"github.com/gin-gonic/gin"
)

// Handler carries the dependencies every route needs.
type Handler struct {
	Store          *store.Store
	Bus            events.Bus
	EventLog       *repositories.EventLogRepository
	AllowedOrigins []string
}

func (h *Handler) bookingService(c *gin.Context) services.BookingService {
	return services.BookingService{Store: h.Store, RequestID: middleware.GetRequestID(c)}
}

// RespondError sends standard error payload with request_id included.
// Keeps backward compatibility by always providing "message".
func RespondError(c *gin.Context, status int, message string, err error) {
	payload := gin.H{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	c.JSON(status, payload)
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		RespondError(c, http.StatusBadRequest, "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid payload", err)
		return false
	}
	return true
}

// limitParam reads ?limit=; 0 lets the store apply its default.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		RespondError(c, http.StatusBadRequest, "limit must be a non-negative integer", err)
		return 0, false
	}
	return n, true
}
