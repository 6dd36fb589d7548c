package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/models"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// DefaultCollectionKey is the persistence key holding the serialized
// order collection.
const DefaultCollectionKey = "coursevault:orders"

// Repository is the order store. It keeps an in-memory index rebuilt
// from the persistence layer at construction and writes through on
// every mutation.
type Repository struct {
	mu    sync.RWMutex
	kv    kv.Store
	key   string
	items map[uuid.UUID]models.Order
}

// NewRepository builds an order repository over the persistence layer.
func NewRepository(ctx context.Context, store kv.Store, collectionKey string) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if collectionKey == "" {
		collectionKey = DefaultCollectionKey
	}

	r := &Repository{kv: store, key: collectionKey, items: map[uuid.UUID]models.Order{}}

	raw, ok, err := store.Get(ctx, collectionKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "load orders")
	}
	if ok && raw != "" {
		var stored []models.Order
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "decode orders")
		}
		for _, order := range stored {
			r.items[order.OrderID] = order
		}
	}
	return r, nil
}

// GetOrder looks up an order by id.
func (r *Repository) GetOrder(_ context.Context, orderID uuid.UUID) (models.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[orderID]
	return order, ok
}

// Insert stores a new order.
func (r *Repository) Insert(ctx context.Context, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.OrderID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already exists")
	}
	return r.save(ctx, order)
}

// Update replaces a stored order.
func (r *Repository) Update(ctx context.Context, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.OrderID]; !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return r.save(ctx, order)
}

// ListByUser returns the user's orders, newest first with the order id
// breaking creation-time ties.
func (r *Repository) ListByUser(_ context.Context, userID string) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Order
	for _, order := range r.items {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderID.String() > out[j].OrderID.String()
	})
	return out
}

// save persists the collection with the given order applied, then
// swaps it into the index. Callers must hold the write lock.
func (r *Repository) save(ctx context.Context, order models.Order) error {
	next := make([]models.Order, 0, len(r.items)+1)
	for id, existing := range r.items {
		if id != order.OrderID {
			next = append(next, existing)
		}
	}
	next = append(next, order)
	sort.Slice(next, func(i, j int) bool {
		return next[i].OrderID.String() < next[j].OrderID.String()
	})

	raw, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "encode orders")
	}
	if err := r.kv.Set(ctx, r.key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "persist orders")
	}

	r.items[order.OrderID] = order
	return nil
}
