package models

import (
	"fmt"
	"time"
)

// Direction is the ledger side of a transaction.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        Direction `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type TransactionFields struct {
	Type        Direction `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
}

func NewTransaction(id, userID string, createdAt time.Time, f TransactionFields) Transaction {
	return Transaction{
		ID:          id,
		UserID:      userID,
		Type:        f.Type,
		Amount:      f.Amount,
		Description: f.Description,
		CreatedAt:   createdAt,
	}
}
