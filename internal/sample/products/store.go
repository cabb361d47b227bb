package products

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Product is the stored representation.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps products in memory.
type Store struct {
	mu       sync.RWMutex
	products map[string]Product
	now      func() time.Time
	newID    func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]Product),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create stores a product named name and returns it.
func (s *Store) Create(name string) Product {
	p := Product{ID: s.newID(), Name: name, CreatedAt: s.now().UTC()}
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p
}

// Get returns the product with id.
func (s *Store) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// List returns every product ordered by creation time, then id.
func (s *Store) List() []Product {
	s.mu.RLock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
