package handlers

import (
	"net/http"
	"strings"

	"transitbook/internal/domain"
	"transitbook/internal/domain/models"
	"transitbook/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/me/activities
func (h *Handler) ListActivities(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": h.Store.GetActivities(middleware.Owner(c), limit)})
}

// POST /api/me/activities
func (h *Handler) CreateActivity(c *gin.Context) {
	var f models.ActivityFields
	if !BindJSONOrError(c, &f) {
		return
	}
	if strings.TrimSpace(f.Type) == "" {
		RespondDomainError(c, domain.ValidationError{Field: "activity_type", Msg: "required"})
		return
	}
	c.JSON(http.StatusCreated, h.Store.AddActivity(middleware.Owner(c), f))
}

// GET /api/me/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": h.Store.GetTransactions(middleware.Owner(c), limit)})
}

type transactionRequest struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// POST /api/me/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req transactionRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	dir, err := models.ParseDirection(strings.ToLower(strings.TrimSpace(req.Type)))
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "type", Msg: "must be debit or credit", Err: err})
		return
	}
	if req.Amount <= 0 {
		RespondDomainError(c, domain.ValidationError{Field: "amount", Msg: "must be positive"})
		return
	}
	tx := h.Store.AddTransaction(middleware.Owner(c), models.TransactionFields{
		Type:        dir,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
	})
	c.JSON(http.StatusCreated, tx)
}
