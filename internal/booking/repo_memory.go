package booking

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early development.
// It is not intended for production use.
type MemoryRepo struct {
	mu       sync.Mutex
	bookings map[string]Booking
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{bookings: make(map[string]Booking)}
}

func (r *MemoryRepo) Insert(ctx context.Context, b Booking) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Booking, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) Update(ctx context.Context, b Booking) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	r.bookings[b.ID] = b
	return nil
}

func (r *MemoryRepo) ListForUser(ctx context.Context, userID string) ([]Booking, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.CustomerID == userID || b.CompanionID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}
