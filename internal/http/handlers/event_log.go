package handlers

import (
	"net/http"

	"transitbook/internal/domain"
	"transitbook/internal/events"
	"transitbook/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/me/events/:collection returns the persisted event history of the
// caller's channel. 503 when no event log is configured.
func (h *Handler) ListEvents(c *gin.Context) {
	if h.EventLog == nil {
		respondError(c, http.StatusServiceUnavailable, "event_log_disabled", "event log is not configured", nil)
		return
	}
	collection := c.Param("collection")
	if !events.IsCollection(collection) {
		RespondDomainError(c, domain.ValidationError{Field: "collection", Msg: "unknown collection " + collection})
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	channel := events.Channel(collection, middleware.Owner(c))
	recs, err := h.EventLog.ListByChannel(c.Request.Context(), channel, limit)
	if err != nil {
		RespondDomainError(c, domain.InternalError{Msg: "event log query failed", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": channel, "events": recs})
}
