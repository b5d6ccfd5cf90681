package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"transitbook/internal/domain"
	"transitbook/internal/domain/models"
	"transitbook/internal/store"
	"transitbook/internal/utils"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	ActivityBookingCreated   = "booking_created"
	ActivityBookingConfirmed = "booking_confirmed"
	ActivityBookingCancelled = "booking_cancelled"
	ActivityPointsRedeemed   = "points_redeemed"
)

// BookingService runs the dashboard booking flows on top of the store. Each
// flow is a sequence of store operations, so subscribers see one event per step.
type BookingService struct {
	Store     *store.Store
	RequestID string
}

// BookingRequest is what the booking form submits.
type BookingRequest struct {
	RouteFrom        string   `json:"route_from"`
	RouteTo          string   `json:"route_to"`
	DepartureDate    string   `json:"departure_date"`
	DepartureTime    string   `json:"departure_time"`
	TotalPrice       float64  `json:"total_price"`
	Passengers       int      `json:"passengers"`
	Class            string   `json:"class"`
	PaymentMethod    string   `json:"payment_method"`
	BookingReference string   `json:"booking_reference"`
	Seats            []string `json:"seats"`
}

// Dashboard is the single read that populates the user dashboard.
type Dashboard struct {
	Profile      models.Profile       `json:"profile"`
	Bookings     []models.Booking     `json:"bookings"`
	Activities   []models.Activity    `json:"activities"`
	Transactions []models.Transaction `json:"transactions"`
}

func (r BookingRequest) validate() error {
	if strings.TrimSpace(r.RouteFrom) == "" {
		return domain.ValidationError{Field: "route_from", Msg: "required"}
	}
	if strings.TrimSpace(r.RouteTo) == "" {
		return domain.ValidationError{Field: "route_to", Msg: "required"}
	}
	if strings.EqualFold(strings.TrimSpace(r.RouteFrom), strings.TrimSpace(r.RouteTo)) {
		return domain.ValidationError{Field: "route_to", Msg: "must differ from route_from"}
	}
	if _, err := utils.ParseDate(r.DepartureDate); err != nil {
		return domain.ValidationError{Field: "departure_date", Msg: "expected YYYY-MM-DD", Err: err}
	}
	if r.DepartureTime != "" {
		if _, err := utils.ParseClock(r.DepartureTime); err != nil {
			return domain.ValidationError{Field: "departure_time", Msg: "expected HH:MM", Err: err}
		}
	}
	if r.TotalPrice < 0 {
		return domain.ValidationError{Field: "total_price", Msg: "must not be negative"}
	}
	if r.Passengers < 0 {
		return domain.ValidationError{Field: "passengers", Msg: "must not be negative"}
	}
	return nil
}

// CreateBooking stores a pending booking, logs the activity, debits the
// price and awards loyalty points for it.
func (s BookingService) CreateBooking(ctx context.Context, owner domain.OwnerKey, req BookingRequest) (models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return models.Booking{}, err
	}
	if err := req.validate(); err != nil {
		return models.Booking{}, err
	}

	passengers := req.Passengers
	if passengers < 1 {
		passengers = 1
	}
	if len(req.Seats) > passengers {
		passengers = len(req.Seats)
	}
	ref := strings.TrimSpace(req.BookingReference)
	if ref == "" {
		ref = NewBookingReference()
	}

	b := s.Store.AddBooking(owner, models.BookingFields{
		RouteFrom:        utils.NormalizeSpace(req.RouteFrom),
		RouteTo:          utils.NormalizeSpace(req.RouteTo),
		DepartureDate:    strings.TrimSpace(req.DepartureDate),
		DepartureTime:    strings.TrimSpace(req.DepartureTime),
		Status:           StatusPending,
		TotalPrice:       req.TotalPrice,
		BookingReference: ref,
		Passengers:       passengers,
		Class:            utils.FirstNonEmpty(req.Class, "Standard"),
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		Seats:            normalizeSeats(req.Seats),
	})

	points := utils.PointsFor(req.TotalPrice)
	s.Store.AddActivity(owner, models.ActivityFields{
		Type:         ActivityBookingCreated,
		Description:  fmt.Sprintf("Booked %s to %s", b.RouteFrom, b.RouteTo),
		PointsEarned: &points,
		Metadata:     map[string]string{"booking_id": b.ID, "booking_reference": b.BookingReference},
	})
	if req.TotalPrice > 0 {
		s.Store.AddTransaction(owner, models.TransactionFields{
			Type:        models.Debit,
			Amount:      req.TotalPrice,
			Description: "Booking " + b.BookingReference,
		})
	}
	if points > 0 {
		s.Store.AddPoints(owner, points)
	}

	utils.LogEvent(s.RequestID, "booking", "create",
		fmt.Sprintf("booking_id=%s price=%s points=%d", b.ID, utils.FormatMoney(b.TotalPrice), points))
	return b, nil
}

// errNoChange makes a guarded update a no-op without failing the flow.
var errNoChange = errors.New("no change")

// ConfirmBooking marks a pending booking as confirmed. Confirming an already
// confirmed booking returns it unchanged.
func (s BookingService) ConfirmBooking(ctx context.Context, owner domain.OwnerKey, id, paymentMethod string) (models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return models.Booking{}, err
	}
	status := StatusConfirmed
	patch := models.BookingPatch{Status: &status}
	if pm := strings.TrimSpace(paymentMethod); pm != "" {
		patch.PaymentMethod = &pm
	}

	b, ok, err := s.Store.UpdateBookingIf(owner, id, func(cur models.Booking) error {
		switch cur.Status {
		case StatusCancelled:
			return domain.ConflictError{Resource: "booking", Msg: "booking is cancelled"}
		case StatusConfirmed:
			return errNoChange
		}
		return nil
	}, patch)
	switch {
	case !ok:
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	case errors.Is(err, errNoChange):
		return b, nil
	case err != nil:
		return models.Booking{}, err
	}

	s.Store.AddActivity(owner, models.ActivityFields{
		Type:        ActivityBookingConfirmed,
		Description: "Confirmed booking " + b.BookingReference,
		Metadata:    map[string]string{"booking_id": b.ID},
	})
	utils.LogEvent(s.RequestID, "booking", "confirm", "booking_id="+id)
	return b, nil
}

// CancelBooking cancels a booking and refunds its price as a credit. The
// points earned at creation are taken back, clamped at zero by the store.
// Only the call that flips the status performs the refund.
func (s BookingService) CancelBooking(ctx context.Context, owner domain.OwnerKey, id string) (models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return models.Booking{}, err
	}
	status := StatusCancelled
	b, ok, err := s.Store.UpdateBookingIf(owner, id, func(cur models.Booking) error {
		if cur.Status == StatusCancelled {
			return domain.ConflictError{Resource: "booking", Msg: "already cancelled"}
		}
		return nil
	}, models.BookingPatch{Status: &status})
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	if err != nil {
		return models.Booking{}, err
	}

	if b.TotalPrice > 0 {
		s.Store.AddTransaction(owner, models.TransactionFields{
			Type:        models.Credit,
			Amount:      b.TotalPrice,
			Description: "Refund " + b.BookingReference,
		})
	}
	if points := utils.PointsFor(b.TotalPrice); points > 0 {
		s.Store.AddPoints(owner, -points)
	}
	s.Store.AddActivity(owner, models.ActivityFields{
		Type:        ActivityBookingCancelled,
		Description: "Cancelled booking " + b.BookingReference,
		Metadata:    map[string]string{"booking_id": b.ID},
	})
	utils.LogEvent(s.RequestID, "booking", "cancel",
		fmt.Sprintf("booking_id=%s refund=%s", id, utils.FormatMoney(b.TotalPrice)))
	return b, nil
}

// RedeemPoints spends loyalty points; the balance must cover them.
func (s BookingService) RedeemPoints(ctx context.Context, owner domain.OwnerKey, points int) (models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return models.Profile{}, err
	}
	if points <= 0 {
		return models.Profile{}, domain.ValidationError{Field: "points", Msg: "must be positive"}
	}
	p, ok := s.Store.SpendPoints(owner, points)
	if !ok {
		return models.Profile{}, domain.ValidationError{
			Field: "points",
			Msg:   fmt.Sprintf("balance is %d", p.LoyaltyPoints),
		}
	}
	redeemed := -points
	s.Store.AddActivity(owner, models.ActivityFields{
		Type:         ActivityPointsRedeemed,
		Description:  fmt.Sprintf("Redeemed %d points", points),
		PointsEarned: &redeemed,
	})
	utils.LogEvent(s.RequestID, "points", "redeem", fmt.Sprintf("points=%d balance=%d", points, p.LoyaltyPoints))
	return p, nil
}

func (s BookingService) Dashboard(ctx context.Context, owner domain.OwnerKey) (Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}
	p, _ := s.Store.GetProfile(owner)
	return Dashboard{
		Profile:      p,
		Bookings:     s.Store.GetBookings(owner, store.DefaultBookingLimit),
		Activities:   s.Store.GetActivities(owner, store.DefaultActivityLimit),
		Transactions: s.Store.GetTransactions(owner, store.DefaultTransactionLimit),
	}, nil
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingReference returns a "GT-" code with six unambiguous characters.
func NewBookingReference() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("booking reference: %v", err))
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return "GT-" + string(buf)
}

func normalizeSeats(seats []string) []string {
	if len(seats) == 0 {
		return nil
	}
	return utils.SplitSeatList(strings.Join(seats, ","))
}
