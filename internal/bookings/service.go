package bookings

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"loyaltygw/internal/flights"
	"loyaltygw/internal/loyalty"
	"loyaltygw/pkg/config"
	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// OfferGetter fetches a priced offer by ID. Satisfied by *flights.Client.
type OfferGetter interface {
	GetOffer(ctx context.Context, offerID string) (map[string]any, error)
}

// ResolveFunc selects the loyalty strategy for a tenant.
type ResolveFunc func(t tenants.Tenant, auth loyalty.AuthContext) (loyalty.Strategy, error)

// Service orchestrates the booking lifecycle: offer lookup, loyalty
// deduction, persistence and cancellation with refunds.
type Service struct {
	store   Store
	offers  OfferGetter
	resolve ResolveFunc
	log     *zap.SugaredLogger
}

func NewService(store Store, offers OfferGetter, cfg config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		offers: offers,
		resolve: func(t tenants.Tenant, auth loyalty.AuthContext) (loyalty.Strategy, error) {
			return loyalty.Resolve(t, auth, cfg.ProviderTimeout, log)
		},
		log: log,
	}
}

// Passenger is one traveller on a booking request.
type Passenger struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PaymentInput is the loyalty amount the member wants to redeem.
type PaymentInput struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// CreateRequest is the booking creation payload.
type CreateRequest struct {
	FlightID   string       `json:"flight_id"`
	Passengers []Passenger  `json:"passengers"`
	Payment    PaymentInput `json:"payment"`
}

func (r CreateRequest) validate() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(r.FlightID) == "" {
		errs["flight_id"] = "flight_id is required"
	}
	if len(r.Passengers) == 0 {
		errs["passengers"] = "at least one passenger is required"
	}
	for i, p := range r.Passengers {
		if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
			errs[fmt.Sprintf("passengers[%d]", i)] = "first_name and last_name are required"
			break
		}
	}
	if r.Payment.Amount <= 0 {
		errs["payment.amount"] = "payment.amount must be greater than zero"
	}
	if strings.TrimSpace(r.Payment.Currency) == "" {
		errs["payment.currency"] = "payment.currency is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// newReference builds a provider-facing booking reference: the member ID
// plus a short random suffix, e.g. "M12345_Q7XKP2RZ".
func newReference(memberID string) string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return memberID + "_" + strings.ToUpper(fmt.Sprintf("%x", time.Now().UnixNano()))[:8]
	}
	return memberID + "_" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Create books a flight against the tenant's loyalty program. Confirmed
// bookings deduct points inside the creation transaction; a failed
// deduction rolls the booking row back. Bookings over the tenant's
// approval threshold are stored pending with no points moved.
func (s *Service) Create(ctx context.Context, t tenants.Tenant, auth loyalty.AuthContext, req CreateRequest, instance string) (map[string]any, error) {
	if errs := req.validate(); errs != nil {
		return nil, problems.Validation("Request validation failed", instance).
			WithExtra(map[string]any{"errors": errs})
	}
	if auth.MemberID == "" {
		return nil, problems.Validation("Missing member identification header", instance)
	}

	reference := newReference(auth.MemberID)
	strategy, err := s.resolve(t, auth.WithReference(reference))
	if err != nil {
		return nil, err
	}
	if err := strategy.Authenticate(ctx); err != nil {
		return nil, err
	}

	offer, err := s.offers.GetOffer(ctx, req.FlightID)
	if err != nil {
		return nil, err
	}
	meta := flights.ExtractMetadata(offer)
	if !t.AllowsCabinClass(meta.CabinClass) {
		return nil, problems.Validation(
			fmt.Sprintf("Cabin class %q is not available for %s members", meta.CabinClass, t.Name), instance)
	}

	amount := strategy.ApplyCashback(req.Payment.Amount)
	loyaltyAmount := int(math.Round(amount))

	approvalRequired, err := strategy.RequiresApproval(ctx, loyaltyAmount, reference)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		TenantSlug:      t.Slug,
		MemberID:        auth.MemberID,
		Origin:          meta.Origin,
		Destination:     meta.Destination,
		DepartureDate:   meta.DepartureDate,
		ReturnDate:      meta.ReturnDate,
		CabinClass:      meta.CabinClass,
		NumPassengers:   len(req.Passengers),
		Amount:          amount,
		LoyaltyCurrency: t.Currency(),
		Airline:         meta.Airline,
		FlightNumber:    meta.FlightNumber,
		Reference:       reference,
		Status:          StatusConfirmed,
	}
	if approvalRequired {
		b.Status = StatusPending
	}

	tx, err := s.store.Begin(ctx, t.Slug)
	if err != nil {
		return nil, problems.Internal("Could not start booking transaction", instance)
	}
	if err := tx.Create(ctx, b); err != nil {
		_ = tx.Rollback(ctx)
		s.log.Errorw("booking insert failed", "tenant", t.Slug, "err", err)
		return nil, problems.Internal("Could not persist booking", instance)
	}
	if b.Status == StatusConfirmed {
		desc := fmt.Sprintf("Flight booking %s to %s", meta.Origin, meta.Destination)
		if err := strategy.DeductPoints(ctx, loyaltyAmount, reference, desc); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		s.log.Errorw("booking commit failed", "tenant", t.Slug, "err", err)
		return nil, problems.Internal("Could not persist booking", instance)
	}

	s.log.Infow("booking created",
		"tenant", t.Slug, "booking_id", b.ID, "status", b.Status,
		"amount", loyaltyAmount, "currency", b.LoyaltyCurrency)

	return s.bookingPayload(b, strategy, req), nil
}

// bookingPayload is the creation response body.
func (s *Service) bookingPayload(b *Booking, strategy loyalty.Strategy, req CreateRequest) map[string]any {
	status := b.Status
	if status == StatusPending {
		status = "pending_approval"
	}
	passengers := make([]map[string]any, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		passengers = append(passengers, map[string]any{
			"name":          strings.TrimSpace(p.FirstName + " " + p.LastName),
			"ticket_number": "0162345678901",
		})
	}
	flight := map[string]any{
		"id":            b.Reference,
		"flight_number": b.FlightNumber,
		"airline":       b.Airline,
		"departure":     b.Origin,
		"arrival":       b.Destination,
		"cabin_class":   b.CabinClass,
	}
	payment := map[string]any{
		"loyalty_amount":   b.Amount,
		"loyalty_currency": b.LoyaltyCurrency,
		"usd_equivalent":   round2(strategy.ToUSD(b.Amount)),
		"cashback":         round2(req.Payment.Amount - b.Amount),
	}
	out := map[string]any{
		"booking_id": b.ID,
		"status":     status,
		"tenant_id":  b.TenantSlug,
		"member_id":  b.MemberID,
		"flight":     flight,
		"passengers": passengers,
		"payment":    payment,
		"created_at": b.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at": b.CreatedAt.Add(30 * time.Minute).UTC().Format(time.RFC3339),
	}
	if b.Status == StatusPending {
		out["approval_required"] = true
		out["approval_reason"] = "Amount exceeds auto-approval threshold"
		out["approval_timeout"] = "PT24H"
	}
	return map[string]any{"data": out}
}

// CancelRequest is the cancellation payload.
type CancelRequest struct {
	Reason          string `json:"reason"`
	RefundRequested bool   `json:"refund_requested"`
}

// Cancel marks a booking cancelled and optionally refunds the points.
// Providers without refund support cancel without moving points.
func (s *Service) Cancel(ctx context.Context, t tenants.Tenant, auth loyalty.AuthContext, id int64, req CancelRequest, instance string) (map[string]any, error) {
	b, err := s.store.Get(ctx, t.Slug, id)
	if err == ErrNotFound {
		return nil, problems.NotFound(fmt.Sprintf("Booking %d not found", id), instance)
	}
	if err != nil {
		return nil, problems.Internal("Could not load booking", instance)
	}
	if b.Status == StatusCancelled {
		return nil, problems.Validation("Booking is already cancelled", instance)
	}

	now := time.Now().UTC()
	b.Status = StatusCancelled
	b.CancelledAt = &now

	var refund map[string]any
	if req.RefundRequested {
		strategy, err := s.resolve(t, auth)
		if err != nil {
			return nil, err
		}
		amount := int(math.Round(b.Amount))
		switch err := strategy.RefundPoints(ctx, amount); {
		case err == nil:
			b.RefundStatus = "processed"
			b.RefundAmount = &b.Amount
			b.RefundProcessedAt = &now
			refund = map[string]any{
				"status":   "processed",
				"amount":   b.Amount,
				"currency": b.LoyaltyCurrency,
			}
		case problems.IsNotSupported(err):
			b.RefundStatus = "unsupported"
			refund = map[string]any{
				"status": "unsupported",
				"detail": fmt.Sprintf("%s does not support refunds; points are forfeit", t.Name),
			}
			s.log.Infow("refund skipped", "tenant", t.Slug, "booking_id", b.ID)
		default:
			return nil, err
		}
	}

	if err := s.store.Update(ctx, b); err != nil {
		s.log.Errorw("booking cancel update failed", "tenant", t.Slug, "booking_id", b.ID, "err", err)
		return nil, problems.Internal("Could not persist cancellation", instance)
	}

	data := map[string]any{
		"booking_id":   b.ID,
		"status":       b.Status,
		"cancelled_at": now.Format(time.RFC3339),
	}
	if req.Reason != "" {
		data["reason"] = req.Reason
	}
	if refund != nil {
		data["refund"] = refund
	}
	return map[string]any{"data": data}, nil
}

// ListPage wraps List results with pagination metadata.
func (s *Service) ListPage(ctx context.Context, f Filter, instance string) (map[string]any, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	rows, total, err := s.store.List(ctx, f)
	if err != nil {
		s.log.Errorw("booking list failed", "tenant", f.Tenant, "err", err)
		return nil, problems.Internal("Could not list bookings", instance)
	}
	items := make([]map[string]any, 0, len(rows))
	for _, b := range rows {
		items = append(items, bookingJSON(b))
	}
	return map[string]any{"data": map[string]any{
		"bookings": items,
		"pagination": map[string]any{
			"total":    total,
			"limit":    f.Limit,
			"offset":   f.Offset,
			"has_more": f.Offset+len(rows) < total,
		},
	}}, nil
}

// Get loads one booking scoped to the tenant.
func (s *Service) Get(ctx context.Context, t tenants.Tenant, id int64, instance string) (map[string]any, error) {
	b, err := s.store.Get(ctx, t.Slug, id)
	if err == ErrNotFound {
		return nil, problems.NotFound(fmt.Sprintf("Booking %d not found", id), instance)
	}
	if err != nil {
		return nil, problems.Internal("Could not load booking", instance)
	}
	return map[string]any{"data": bookingJSON(b)}, nil
}

// Search matches member IDs and booking references within the tenant.
func (s *Service) Search(ctx context.Context, t tenants.Tenant, query, instance string) (map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, problems.Validation("Query parameter q is required", instance)
	}
	rows, err := s.store.Search(ctx, t.Slug, query)
	if err != nil {
		s.log.Errorw("booking search failed", "tenant", t.Slug, "err", err)
		return nil, problems.Internal("Could not search bookings", instance)
	}
	items := make([]map[string]any, 0, len(rows))
	for _, b := range rows {
		items = append(items, bookingJSON(b))
	}
	return map[string]any{"data": map[string]any{"results": items, "count": len(items)}}, nil
}

func bookingJSON(b *Booking) map[string]any {
	out := map[string]any{
		"booking_id":       b.ID,
		"tenant_id":        b.TenantSlug,
		"member_id":        b.MemberID,
		"reference":        b.Reference,
		"status":           b.Status,
		"origin":           b.Origin,
		"destination":      b.Destination,
		"departure_date":   b.DepartureDate.UTC().Format(time.RFC3339),
		"cabin_class":      b.CabinClass,
		"num_passengers":   b.NumPassengers,
		"airline":          b.Airline,
		"flight_number":    b.FlightNumber,
		"loyalty_amount":   b.Amount,
		"loyalty_currency": b.LoyaltyCurrency,
		"created_at":       b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.ReturnDate != nil {
		out["return_date"] = b.ReturnDate.UTC().Format(time.RFC3339)
	}
	if b.CancelledAt != nil {
		out["cancelled_at"] = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	if b.RefundStatus != "" {
		out["refund_status"] = b.RefundStatus
	}
	return out
}
