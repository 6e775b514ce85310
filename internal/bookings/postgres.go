package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// EnsureSchema creates the bookings table if missing. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bookings (
  id BIGSERIAL PRIMARY KEY,
  tenant_slug TEXT NOT NULL,
  member_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  departure_date TIMESTAMPTZ NOT NULL,
  return_date TIMESTAMPTZ,
  cabin_class TEXT NOT NULL DEFAULT '',
  num_passengers INT NOT NULL DEFAULT 1,
  amount DOUBLE PRECISION NOT NULL,
  loyalty_currency TEXT NOT NULL DEFAULT '',
  airline TEXT NOT NULL DEFAULT '',
  flight_number TEXT NOT NULL DEFAULT '',
  reference TEXT NOT NULL,
  status TEXT NOT NULL,
  cancelled_at TIMESTAMPTZ,
  refund_status TEXT NOT NULL DEFAULT '',
  refund_amount DOUBLE PRECISION,
  refund_processed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_tenant_idx ON bookings(tenant_slug, created_at DESC);
CREATE INDEX IF NOT EXISTS bookings_reference_idx ON bookings(reference);
`)
	return err
}

const bookingCols = `id, tenant_slug, member_id, origin, destination, departure_date, return_date,
cabin_class, num_passengers, amount, loyalty_currency, airline, flight_number, reference,
status, cancelled_at, refund_status, refund_amount, refund_processed_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(&b.ID, &b.TenantSlug, &b.MemberID, &b.Origin, &b.Destination,
		&b.DepartureDate, &b.ReturnDate, &b.CabinClass, &b.NumPassengers, &b.Amount,
		&b.LoyaltyCurrency, &b.Airline, &b.FlightNumber, &b.Reference, &b.Status,
		&b.CancelledAt, &b.RefundStatus, &b.RefundAmount, &b.RefundProcessedAt,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (s *pgStore) Begin(ctx context.Context, tenantSlug string) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (t *pgTx) Create(ctx context.Context, b *Booking) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return t.tx.QueryRow(ctx, `INSERT INTO bookings
(tenant_slug, member_id, origin, destination, departure_date, return_date, cabin_class,
 num_passengers, amount, loyalty_currency, airline, flight_number, reference, status,
 created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id`,
		b.TenantSlug, b.MemberID, b.Origin, b.Destination, b.DepartureDate, b.ReturnDate,
		b.CabinClass, b.NumPassengers, b.Amount, b.LoyaltyCurrency, b.Airline,
		b.FlightNumber, b.Reference, b.Status, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (s *pgStore) Get(ctx context.Context, tenantSlug string, id int64) (*Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE tenant_slug=$1 AND id=$2`, tenantSlug, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *pgStore) List(ctx context.Context, f Filter) ([]*Booking, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Tenant != "" {
		where = append(where, "tenant_slug = "+arg(f.Tenant))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.FromDate != nil {
		where = append(where, "departure_date >= "+arg(*f.FromDate))
	}
	if f.ToDate != nil {
		where = append(where, "departure_date <= "+arg(*f.ToDate))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM bookings"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + bookingCols + " FROM bookings" + cond + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (s *pgStore) Search(ctx context.Context, tenantSlug, query string) ([]*Booking, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bookingCols+` FROM bookings
WHERE tenant_slug=$1 AND (member_id ILIKE $2 OR reference ILIKE $2)
ORDER BY created_at DESC`, tenantSlug, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *pgStore) Update(ctx context.Context, b *Booking) error {
	b.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE bookings SET status=$1, cancelled_at=$2,
refund_status=$3, refund_amount=$4, refund_processed_at=$5, updated_at=$6
WHERE tenant_slug=$7 AND id=$8`,
		b.Status, b.CancelledAt, b.RefundStatus, b.RefundAmount, b.RefundProcessedAt,
		b.UpdatedAt, b.TenantSlug, b.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
