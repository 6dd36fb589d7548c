// Package activation manages single-use activation codes that settle
// orders without an external payment provider.
package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursevault/coursevault-backend/pkg/kv"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// DefaultCollectionKey is the persistence key holding the serialized
// code collection.
const DefaultCollectionKey = "coursevault:activation_codes"

var now = time.Now

// Redeemer consumes an activation code and returns the synthetic
// transaction id settling the order.
type Redeemer interface {
	Redeem(ctx context.Context, code string) (string, error)
}

type codeRecord struct {
	Code          string     `json:"code"`
	Used          bool       `json:"used"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
}

type redeemer struct {
	mu    sync.Mutex
	kv    kv.Store
	key   string
	codes map[string]codeRecord
}

// NewRedeemer builds a store-backed redeemer. Seed codes not already
// on record are added and persisted; codes a previous run marked used
// stay used.
func NewRedeemer(ctx context.Context, store kv.Store, collectionKey string, seeds []string) (Redeemer, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if collectionKey == "" {
		collectionKey = DefaultCollectionKey
	}

	r := &redeemer{kv: store, key: collectionKey, codes: map[string]codeRecord{}}

	raw, ok, err := store.Get(ctx, collectionKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "load activation codes")
	}
	if ok && raw != "" {
		var stored []codeRecord
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "decode activation codes")
		}
		for _, record := range stored {
			r.codes[record.Code] = record
		}
	}

	added := false
	for _, seed := range seeds {
		if seed == "" {
			continue
		}
		if _, exists := r.codes[seed]; !exists {
			r.codes[seed] = codeRecord{Code: seed}
			added = true
		}
	}
	if added {
		if err := r.persist(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Redeem consumes the code. Unknown codes and already used codes are
// rejected; a consumed code never redeems twice.
func (r *redeemer) Redeem(ctx context.Context, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.codes[code]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown activation code")
	}
	if record.Used {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "activation code already used")
	}

	ts := now().UTC()
	record.Used = true
	record.UsedAt = &ts
	record.TransactionID = "act_" + uuid.NewString()

	previous := r.codes[code]
	r.codes[code] = record
	if err := r.persist(ctx); err != nil {
		r.codes[code] = previous
		return "", err
	}
	return record.TransactionID, nil
}

// persist writes the collection. Callers must hold the lock.
func (r *redeemer) persist(ctx context.Context) error {
	records := make([]codeRecord, 0, len(r.codes))
	for _, record := range r.codes {
		records = append(records, record)
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "encode activation codes")
	}
	if err := r.kv.Set(ctx, r.key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "persist activation codes")
	}
	return nil
}
