package bookings

import "time"

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Booking is a flight booking redeemed through a tenant's loyalty program.
type Booking struct {
	ID            int64
	TenantSlug    string
	MemberID      string
	Origin        string // IATA code (CPT)
	Destination   string // IATA code (JNB)
	DepartureDate time.Time
	ReturnDate    *time.Time // nil for one-way
	CabinClass    string
	NumPassengers int

	Amount          float64 // loyalty amount redeemed, post-cashback
	LoyaltyCurrency string  // Stars, Points, Coins

	Airline      string
	FlightNumber string
	Reference    string // generated booking reference, sent to the provider

	Status      string
	CancelledAt *time.Time

	RefundStatus      string
	RefundAmount      *float64
	RefundProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
