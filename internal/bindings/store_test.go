package bindings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursevault/coursevault-backend/pkg/kv"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

type failingStore struct {
	kv.Store
	failSet bool
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func newTestStore(t *testing.T) (*Store, *failingStore) {
	t.Helper()
	backend := &failingStore{Store: kv.NewMemory()}
	s, err := NewStore(context.Background(), backend, "test:bindings")
	require.NoError(t, err)
	return s, backend
}

func TestCreateOrRefreshBindsOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)
	assert.True(t, first.IsValid)
	assert.Equal(t, "fp_aaa", first.DeviceFingerprint)

	// A repeat purchase while the binding is valid must not re-bind.
	again, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_bbb", "lic-2")
	require.NoError(t, err)
	assert.Equal(t, first.LicenseKey, again.LicenseKey)
	assert.Equal(t, "fp_aaa", again.DeviceFingerprint)
}

func TestCreateOrRefreshAfterRevokeStartsNewGeneration(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)

	revoked, err := s.Revoke(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, revoked)

	fresh, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_bbb", "lic-2")
	require.NoError(t, err)
	assert.True(t, fresh.IsValid)
	assert.Equal(t, "fp_bbb", fresh.DeviceFingerprint)

	// Both generations stay on record.
	history := s.ListByUser(ctx, "u1")
	require.Len(t, history, 2)
	assert.Equal(t, "lic-2", history[0].LicenseKey)
	assert.False(t, history[1].IsValid)
}

func TestRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	revoked, err := s.Revoke(ctx, "u1", "missing")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)

	revoked, err = s.Revoke(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.Revoke(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, revoked)

	got, ok := s.Get(ctx, "u1", "c1")
	require.True(t, ok)
	assert.False(t, got.IsValid)
}

func TestTouchAccessUpdatesValidBindingOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.TouchAccess(ctx, "u1", "absent"))

	_, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)

	before, _ := s.Get(ctx, "u1", "c1")

	orig := now
	now = func() time.Time { return before.LastAccessAt.Add(time.Minute) }
	defer func() { now = orig }()

	require.NoError(t, s.TouchAccess(ctx, "u1", "c1"))

	after, _ := s.Get(ctx, "u1", "c1")
	assert.True(t, after.LastAccessAt.After(before.LastAccessAt))

	_, err = s.Revoke(ctx, "u1", "c1")
	require.NoError(t, err)
	revokedAt, _ := s.Get(ctx, "u1", "c1")

	require.NoError(t, s.TouchAccess(ctx, "u1", "c1"))
	unchanged, _ := s.Get(ctx, "u1", "c1")
	assert.Equal(t, revokedAt.LastAccessAt, unchanged.LastAccessAt)
}

func TestPersistFailureLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	_, err := s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)

	backend.failSet = true

	_, err = s.CreateOrRefresh(ctx, "u1", "c2", "fp_aaa", "lic-2")
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStoreIO, appErr.Code())

	// The failed write must not leak into the index.
	_, ok := s.Get(ctx, "u1", "c2")
	assert.False(t, ok)

	revoked, err := s.Revoke(ctx, "u1", "c1")
	require.Error(t, err)
	assert.False(t, revoked)
	got, _ := s.Get(ctx, "u1", "c1")
	assert.True(t, got.IsValid)
}

func TestStoreRebuildsFromPersistedCollection(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()

	s, err := NewStore(ctx, backend, "test:bindings")
	require.NoError(t, err)
	_, err = s.CreateOrRefresh(ctx, "u1", "c1", "fp_aaa", "lic-1")
	require.NoError(t, err)

	reloaded, err := NewStore(ctx, backend, "test:bindings")
	require.NoError(t, err)

	got, ok := reloaded.Get(ctx, "u1", "c1")
	require.True(t, ok)
	assert.Equal(t, "lic-1", got.LicenseKey)
	assert.True(t, got.IsValid)
	assert.Len(t, reloaded.All(ctx), 1)
}
