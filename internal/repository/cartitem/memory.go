package cartitem

import (
	"context"
	"sort"
	"sync"

	"cartsync/internal/domain"
)

// memoryRepo keeps the cart in process memory behind a RWMutex. It backs
// the memory store driver and the unit tests.
type memoryRepo struct {
	mu     sync.RWMutex
	items  map[int64]domain.CartLineItem
	nextID int64
}

// NewMemory returns an in-memory Repository.
func NewMemory() Repository {
	return &memoryRepo{items: make(map[int64]domain.CartLineItem), nextID: 1}
}

func (r *memoryRepo) FindByProduct(_ context.Context, productID int64) (*domain.CartLineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *memoryRepo) InsertIfAbsent(_ context.Context, item domain.CartLineItem) (bool, error) {
	if item.Quantity <= 0 {
		return false, ErrNonPositiveQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ProductID]; exists {
		return false, nil
	}
	item.ID = r.nextID
	r.nextID++
	r.items[item.ProductID] = item
	return true, nil
}

func (r *memoryRepo) Update(_ context.Context, item domain.CartLineItem) error {
	if item.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[item.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	item.ID = current.ID
	r.items[item.ProductID] = item
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, productID)
	return nil
}

func (r *memoryRepo) UpsertAll(_ context.Context, items []domain.CartLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.upsertLocked(items)
}

func (r *memoryRepo) ReplaceAll(_ context.Context, items []domain.CartLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate before touching anything so a bad set cannot leave the
	// table half-replaced.
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrNonPositiveQuantity
		}
	}
	r.items = make(map[int64]domain.CartLineItem, len(items))
	return r.upsertLocked(items)
}

func (r *memoryRepo) upsertLocked(items []domain.CartLineItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrNonPositiveQuantity
		}
		if current, ok := r.items[item.ProductID]; ok {
			item.ID = current.ID
		} else {
			item.ID = r.nextID
			r.nextID++
		}
		r.items[item.ProductID] = item
	}
	return nil
}

func (r *memoryRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[int64]domain.CartLineItem)
	return nil
}

func (r *memoryRepo) GetAll(_ context.Context) ([]domain.CartLineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.CartLineItem, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memoryRepo) Ping(_ context.Context) error {
	return nil
}
