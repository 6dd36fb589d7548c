// Package payments keeps the append-only ledger of payment records.
// Records are never updated or deleted once written.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/models"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// DefaultCollectionKey is the persistence key holding the serialized
// ledger.
const DefaultCollectionKey = "coursevault:payments"

var now = time.Now

// orderSource resolves orders the ledger references. The order
// repository satisfies it.
type orderSource interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, bool)
}

// Ledger is the payment record store. Every record must reference an
// existing order.
type Ledger struct {
	mu     sync.RWMutex
	kv     kv.Store
	key    string
	orders orderSource
	items  []models.PaymentRecord
}

// NewLedger builds a ledger over the persistence layer and rebuilds
// the in-memory records from the stored collection.
func NewLedger(ctx context.Context, store kv.Store, collectionKey string, orders orderSource) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if collectionKey == "" {
		collectionKey = DefaultCollectionKey
	}

	l := &Ledger{kv: store, key: collectionKey, orders: orders}

	raw, ok, err := store.Get(ctx, collectionKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "load payments")
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &l.items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "decode payments")
		}
	}
	return l, nil
}

// Append writes a payment record against an existing order. A record
// carrying a transaction id already on the ledger for that order is
// returned as-is so a replayed provider callback cannot double-book.
func (l *Ledger) Append(ctx context.Context, orderID uuid.UUID, transactionID string, amount decimal.Decimal, method enums.PaymentMethod, details map[string]any) (models.PaymentRecord, error) {
	if _, ok := l.orders.GetOrder(ctx, orderID); !ok {
		return models.PaymentRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		if l.items[i].OrderID == orderID && l.items[i].TransactionID == transactionID {
			return l.items[i], nil
		}
	}

	record := models.PaymentRecord{
		RecordID:      uuid.New(),
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        amount,
		PaymentMethod: method,
		RecordedAt:    now().UTC(),
		Details:       details,
	}

	next := make([]models.PaymentRecord, len(l.items), len(l.items)+1)
	copy(next, l.items)
	next = append(next, record)

	if err := l.persist(ctx, next); err != nil {
		return models.PaymentRecord{}, err
	}
	l.items = next
	return record, nil
}

// ListByOrder returns the records booked against an order, oldest
// first.
func (l *Ledger) ListByOrder(_ context.Context, orderID uuid.UUID) []models.PaymentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.PaymentRecord
	for _, r := range l.items {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out
}

// ListByUser returns the records whose order belongs to the user,
// newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID string) []models.PaymentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.PaymentRecord
	for i := len(l.items) - 1; i >= 0; i-- {
		order, ok := l.orders.GetOrder(ctx, l.items[i].OrderID)
		if ok && order.UserID == userID {
			out = append(out, l.items[i])
		}
	}
	return out
}

// SumForOrder totals the amounts booked against an order.
func (l *Ledger) SumForOrder(ctx context.Context, orderID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.ListByOrder(ctx, orderID) {
		total = total.Add(r.Amount)
	}
	return total
}

func (l *Ledger) persist(ctx context.Context, next []models.PaymentRecord) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "encode payments")
	}
	if err := l.kv.Set(ctx, l.key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "persist payments")
	}
	return nil
}
