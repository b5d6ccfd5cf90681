package services

import (
	"bytes"
	"fmt"
	"strings"

	"transitbook/internal/domain"
	"transitbook/internal/domain/models"
	"transitbook/internal/store"
	"transitbook/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders booking documents.
type DocsService struct {
	Store     *store.Store
	RequestID string
}

// GenerateETicket renders the e-ticket PDF for one of owner's bookings.
func (s DocsService) GenerateETicket(owner domain.OwnerKey, bookingID string) ([]byte, string, error) {
	b, ok := s.Store.GetBooking(owner, bookingID)
	if !ok {
		return nil, "", domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if b.Status == StatusCancelled {
		return nil, "", domain.ConflictError{Resource: "booking", Msg: "cancelled bookings have no e-ticket"}
	}
	utils.LogEvent(s.RequestID, "docs", "generate_eticket", "booking_id="+bookingID)
	return buildETicketPDF(b)
}

func buildETicketPDF(b models.Booking) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	seats := "-"
	if len(b.Seats) > 0 {
		seats = strings.Join(b.Seats, ", ")
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Reference   : %s", safe(b.BookingReference, "-")),
		fmt.Sprintf("Route       : %s -> %s", safe(b.RouteFrom, "-"), safe(b.RouteTo, "-")),
		fmt.Sprintf("Departure   : %s %s", safe(dateOnly(b.DepartureDate), "-"), safe(timeHM(b.DepartureTime), "-")),
		fmt.Sprintf("Class       : %s", safe(b.Class, "-")),
		fmt.Sprintf("Passengers  : %d", b.Passengers),
		fmt.Sprintf("Seats       : %s", seats),
		fmt.Sprintf("Status      : %s", safe(b.Status, "-")),
		fmt.Sprintf("Vehicle     : %s", safe(b.VehicleNumber, "-")),
		fmt.Sprintf("Driver      : %s %s", safe(b.DriverName, "-"), b.DriverPhone),
		fmt.Sprintf("Payment     : %s", safe(b.PaymentMethod, "-")),
		// the PDF core fonts are latin-1, so the cedi sign is spelled out
		fmt.Sprintf("Total       : %s", strings.Replace(utils.FormatCedi(b.TotalPrice), "GH₵", "GHS", 1)),
		fmt.Sprintf("Booked at   : %s", utils.FormatDateTime(b.CreatedAt)),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this e-ticket at the terminal before boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ETICKET_%s.pdf", safeFilenamePart(b.BookingReference))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func dateOnly(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 10 {
		return v[:10]
	}
	return v
}

func timeHM(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 5 {
		return v[:5]
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
