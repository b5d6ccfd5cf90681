package models

import "time"

// Booking is a reserved trip owned by exactly one user.
type Booking struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RouteFrom        string    `json:"route_from"`
	RouteTo          string    `json:"route_to"`
	DepartureDate    string    `json:"departure_date"`
	DepartureTime    string    `json:"departure_time"`
	Status           string    `json:"status"`
	TotalPrice       float64   `json:"total_price"`
	BookingReference string    `json:"booking_reference"`
	Passengers       int       `json:"passengers"`
	Class            string    `json:"class"`
	CreatedAt        time.Time `json:"created_at"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	VehicleNumber    string    `json:"vehicle_number,omitempty"`
	DriverName       string    `json:"driver_name,omitempty"`
	DriverPhone      string    `json:"driver_phone,omitempty"`
	Seats            []string  `json:"seats,omitempty"`
}

// BookingFields is everything a caller supplies when creating a booking.
// ID, UserID and CreatedAt are assigned by the store.
type BookingFields struct {
	RouteFrom        string   `json:"route_from"`
	RouteTo          string   `json:"route_to"`
	DepartureDate    string   `json:"departure_date"`
	DepartureTime    string   `json:"departure_time"`
	Status           string   `json:"status"`
	TotalPrice       float64  `json:"total_price"`
	BookingReference string   `json:"booking_reference"`
	Passengers       int      `json:"passengers"`
	Class            string   `json:"class"`
	PaymentMethod    string   `json:"payment_method,omitempty"`
	VehicleNumber    string   `json:"vehicle_number,omitempty"`
	DriverName       string   `json:"driver_name,omitempty"`
	DriverPhone      string   `json:"driver_phone,omitempty"`
	Seats            []string `json:"seats,omitempty"`
}

// BookingPatch supports PATCH-style updates via key presence.
type BookingPatch struct {
	RouteFrom        *string   `json:"route_from,omitempty"`
	RouteTo          *string   `json:"route_to,omitempty"`
	DepartureDate    *string   `json:"departure_date,omitempty"`
	DepartureTime    *string   `json:"departure_time,omitempty"`
	Status           *string   `json:"status,omitempty"`
	TotalPrice       *float64  `json:"total_price,omitempty"`
	BookingReference *string   `json:"booking_reference,omitempty"`
	Passengers       *int      `json:"passengers,omitempty"`
	Class            *string   `json:"class,omitempty"`
	PaymentMethod    *string   `json:"payment_method,omitempty"`
	VehicleNumber    *string   `json:"vehicle_number,omitempty"`
	DriverName       *string   `json:"driver_name,omitempty"`
	DriverPhone      *string   `json:"driver_phone,omitempty"`
	Seats            *[]string `json:"seats,omitempty"`
}

func (f BookingFields) toBooking() Booking {
	return Booking{
		RouteFrom:        f.RouteFrom,
		RouteTo:          f.RouteTo,
		DepartureDate:    f.DepartureDate,
		DepartureTime:    f.DepartureTime,
		Status:           f.Status,
		TotalPrice:       f.TotalPrice,
		BookingReference: f.BookingReference,
		Passengers:       f.Passengers,
		Class:            f.Class,
		PaymentMethod:    f.PaymentMethod,
		VehicleNumber:    f.VehicleNumber,
		DriverName:       f.DriverName,
		DriverPhone:      f.DriverPhone,
		Seats:            cloneSeats(f.Seats),
	}
}

// NewBooking builds a booking record from caller fields and the identity the
// store assigns.
func NewBooking(id, userID string, createdAt time.Time, f BookingFields) Booking {
	b := f.toBooking()
	b.ID = id
	b.UserID = userID
	b.CreatedAt = createdAt
	return b
}

// Apply returns a copy of b with every present patch field overwritten.
func (p BookingPatch) Apply(b Booking) Booking {
	out := b
	out.Seats = cloneSeats(b.Seats)
	if p.RouteFrom != nil {
		out.RouteFrom = *p.RouteFrom
	}
	if p.RouteTo != nil {
		out.RouteTo = *p.RouteTo
	}
	if p.DepartureDate != nil {
		out.DepartureDate = *p.DepartureDate
	}
	if p.DepartureTime != nil {
		out.DepartureTime = *p.DepartureTime
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.TotalPrice != nil {
		out.TotalPrice = *p.TotalPrice
	}
	if p.BookingReference != nil {
		out.BookingReference = *p.BookingReference
	}
	if p.Passengers != nil {
		out.Passengers = *p.Passengers
	}
	if p.Class != nil {
		out.Class = *p.Class
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = *p.PaymentMethod
	}
	if p.VehicleNumber != nil {
		out.VehicleNumber = *p.VehicleNumber
	}
	if p.DriverName != nil {
		out.DriverName = *p.DriverName
	}
	if p.DriverPhone != nil {
		out.DriverPhone = *p.DriverPhone
	}
	if p.Seats != nil {
		out.Seats = cloneSeats(*p.Seats)
	}
	return out
}

// Clone returns a deep copy so callers never share the seat slice with the store.
func (b Booking) Clone() Booking {
	b.Seats = cloneSeats(b.Seats)
	return b
}

func cloneSeats(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
