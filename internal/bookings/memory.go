package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is the in-memory Store used when DATABASE_URL is unset and in tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Booking
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memStore{nextID: 1, rows: map[int64]*Booking{}}
}

type memTx struct {
	store   *memStore
	pending []*Booking
	done    bool
}

func (s *memStore) Begin(ctx context.Context, tenantSlug string) (Tx, error) {
	return &memTx{store: s}, nil
}

func (t *memTx) Create(ctx context.Context, b *Booking) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	now := time.Now().UTC()
	b.ID = t.store.nextID
	t.store.nextID++
	b.CreatedAt = now
	b.UpdatedAt = now
	t.pending = append(t.pending, b)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	for _, b := range t.pending {
		cp := *b
		t.store.rows[b.ID] = &cp
	}
	t.pending = nil
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	t.pending = nil
	return nil
}

func (s *memStore) Get(ctx context.Context, tenantSlug string, id int64) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok || b.TenantSlug != tenantSlug {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, f Filter) ([]*Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*Booking
	for _, b := range s.rows {
		if f.Tenant != "" && b.TenantSlug != f.Tenant {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.FromDate != nil && b.DepartureDate.Before(*f.FromDate) {
			continue
		}
		if f.ToDate != nil && b.DepartureDate.After(*f.ToDate) {
			continue
		}
		cp := *b
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *memStore) Search(ctx context.Context, tenantSlug, query string) ([]*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []*Booking
	for _, b := range s.rows {
		if b.TenantSlug != tenantSlug {
			continue
		}
		if strings.Contains(strings.ToLower(b.MemberID), q) ||
			strings.Contains(strings.ToLower(b.Reference), q) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) Update(ctx context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[b.ID]
	if !ok || cur.TenantSlug != b.TenantSlug {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	s.rows[b.ID] = &cp
	return nil
}
