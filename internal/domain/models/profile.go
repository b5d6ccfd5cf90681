package models

// Profile is the per-user aggregate; ID equals the owner key.
type Profile struct {
	ID            string `json:"id"`
	LoyaltyPoints int    `json:"loyalty_points"`
}
