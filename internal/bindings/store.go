// Package bindings owns the authoritative collection of license
// binding records. The store keeps an in-memory index rebuilt from the
// persistence layer at construction and writes through on every
// mutation; a failed write surfaces as a store I/O error and leaves
// the index untouched.
package bindings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/models"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// DefaultCollectionKey is the persistence key holding the serialized
// binding collection.
const DefaultCollectionKey = "coursevault:bindings"

var now = time.Now

// Store is the license binding repository. All mutation of binding
// records goes through it.
type Store struct {
	mu  sync.RWMutex
	kv  kv.Store
	key string
	// items holds every binding generation in append order; the current
	// binding for a (user, course) pair is its latest generation.
	items []models.LicenseBinding
}

// NewStore builds a binding store over the persistence layer and
// rebuilds the in-memory index from the stored collection.
func NewStore(ctx context.Context, store kv.Store, collectionKey string) (*Store, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if collectionKey == "" {
		collectionKey = DefaultCollectionKey
	}

	s := &Store{kv: store, key: collectionKey}

	raw, ok, err := store.Get(ctx, collectionKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "load bindings")
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "decode bindings")
		}
	}
	return s, nil
}

// Get returns the current (possibly revoked) binding for the pair.
func (s *Store) Get(_ context.Context, userID, courseID string) (models.LicenseBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.currentIndex(userID, courseID); ok {
		return s.items[idx], true
	}
	return models.LicenseBinding{}, false
}

// CreateOrRefresh installs a binding for the pair. When a valid
// binding already exists the call is a no-op returning it unchanged, so
// a duplicate completion callback can never re-bind an active license
// to another device. A revoked binding is superseded by a fresh
// generation with the supplied fingerprint and license key.
func (s *Store) CreateOrRefresh(ctx context.Context, userID, courseID, deviceFingerprint, licenseKey string) (models.LicenseBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.currentIndex(userID, courseID); ok && s.items[idx].IsValid {
		return s.items[idx], nil
	}

	ts := now().UTC()
	binding := models.LicenseBinding{
		UserID:            userID,
		CourseID:          courseID,
		LicenseKey:        licenseKey,
		DeviceFingerprint: deviceFingerprint,
		BoundAt:           ts,
		LastAccessAt:      ts,
		IsValid:           true,
	}

	next := make([]models.LicenseBinding, len(s.items), len(s.items)+1)
	copy(next, s.items)
	next = append(next, binding)

	if err := s.persist(ctx, next); err != nil {
		return models.LicenseBinding{}, err
	}
	s.items = next
	return binding, nil
}

// TouchAccess stamps the current valid binding's last access time.
// Absent or revoked bindings make this a no-op.
func (s *Store) TouchAccess(ctx context.Context, userID, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.currentIndex(userID, courseID)
	if !ok || !s.items[idx].IsValid {
		return nil
	}

	next := make([]models.LicenseBinding, len(s.items))
	copy(next, s.items)
	next[idx].LastAccessAt = now().UTC()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Revoke invalidates the active binding for the pair. It reports false
// when nothing was active; repeated revokes are safe.
func (s *Store) Revoke(ctx context.Context, userID, courseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.currentIndex(userID, courseID)
	if !ok || !s.items[idx].IsValid {
		return false, nil
	}

	next := make([]models.LicenseBinding, len(s.items))
	copy(next, s.items)
	next[idx].IsValid = false

	if err := s.persist(ctx, next); err != nil {
		return false, err
	}
	s.items = next
	return true, nil
}

// ListByUser returns every binding generation recorded for the user,
// newest first. The result is a snapshot, not a live view.
func (s *Store) ListByUser(_ context.Context, userID string) []models.LicenseBinding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LicenseBinding
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].UserID == userID {
			out = append(out, s.items[i])
		}
	}
	return out
}

// All returns a snapshot of the full collection.
func (s *Store) All(_ context.Context) []models.LicenseBinding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LicenseBinding, len(s.items))
	copy(out, s.items)
	return out
}

// currentIndex returns the index of the latest generation for the
// pair. Callers must hold the lock.
func (s *Store) currentIndex(userID, courseID string) (int, bool) {
	target := models.LicenseBinding{UserID: userID, CourseID: courseID}.Key()
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].Key() == target {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) persist(ctx context.Context, next []models.LicenseBinding) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "encode bindings")
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreIO, err, "persist bindings")
	}
	return nil
}
