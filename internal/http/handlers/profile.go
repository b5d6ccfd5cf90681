package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"transitbook/internal/domain"
	"transitbook/internal/http/middleware"
	"transitbook/internal/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/me/profile
func (h *Handler) GetProfile(c *gin.Context) {
	p, ok := h.Store.GetProfile(middleware.Owner(c))
	if !ok {
		RespondDomainError(c, domain.NotFoundError{Resource: "profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/me/dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	d, err := h.bookingService(c).Dashboard(c.Request.Context(), middleware.Owner(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type redeemRequest struct {
	Points int `json:"points"`
}

// POST /api/me/points/redeem
func (h *Handler) RedeemPoints(c *gin.Context) {
	var req redeemRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	p, err := h.bookingService(c).RedeemPoints(c.Request.Context(), middleware.Owner(c), req.Points)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// maxPointsAdjustment bounds a single admin adjustment in either direction.
const maxPointsAdjustment = 1_000_000

type adjustPointsRequest struct {
	Owner string `json:"owner"`
	Delta int    `json:"delta"`
}

// POST /api/admin/points adjusts any owner's balance; the store clamps at zero.
func (h *Handler) AdjustPoints(c *gin.Context) {
	var req adjustPointsRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		RespondDomainError(c, domain.ValidationError{Field: "owner", Msg: "required"})
		return
	}
	if req.Delta > maxPointsAdjustment || req.Delta < -maxPointsAdjustment {
		RespondDomainError(c, domain.ValidationError{
			Field: "delta",
			Msg:   fmt.Sprintf("must be within ±%d", maxPointsAdjustment),
		})
		return
	}
	p := h.Store.AddPoints(domain.OwnerKey(owner), req.Delta)
	utils.LogEvent(middleware.GetRequestID(c), "admin", "adjust_points",
		"by="+string(middleware.Owner(c))+" owner="+owner)
	c.JSON(http.StatusOK, p)
}
