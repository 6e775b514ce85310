package bookings

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a booking does not exist for the tenant.
var ErrNotFound = errors.New("booking not found")

// Filter narrows List results. Zero values mean "no constraint".
// An empty Tenant lists across all tenants (admin view).
type Filter struct {
	Tenant   string
	Status   string
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Store persists bookings. Creation runs inside an explicit unit of work
// so a failed loyalty deduction can roll the row back.
type Store interface {
	Begin(ctx context.Context, tenantSlug string) (Tx, error)
	Get(ctx context.Context, tenantSlug string, id int64) (*Booking, error)
	// List returns the page plus the total row count for the filter.
	List(ctx context.Context, f Filter) ([]*Booking, int, error)
	// Search matches member IDs and booking references for one tenant.
	Search(ctx context.Context, tenantSlug, query string) ([]*Booking, error)
	Update(ctx context.Context, b *Booking) error
}

// Tx is a pending booking creation. Commit makes it durable; Rollback
// discards it. Create fills in the booking's ID and timestamps.
type Tx interface {
	Create(ctx context.Context, b *Booking) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
