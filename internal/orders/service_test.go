package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/metrics"
	"github.com/coursevault/coursevault-backend/pkg/models"
	"github.com/coursevault/coursevault-backend/pkg/pagination"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

type stubLedger struct {
	appends []string
	err     error
}

func (s *stubLedger) Append(_ context.Context, orderID uuid.UUID, transactionID string, amount decimal.Decimal, _ enums.PaymentMethod, _ map[string]any) (models.PaymentRecord, error) {
	if s.err != nil {
		return models.PaymentRecord{}, s.err
	}
	s.appends = append(s.appends, transactionID)
	return models.PaymentRecord{RecordID: uuid.New(), OrderID: orderID, TransactionID: transactionID, Amount: amount}, nil
}

type stubBindings struct {
	calls []string
}

func (s *stubBindings) CreateOrRefresh(_ context.Context, userID, courseID, fingerprint, licenseKey string) (models.LicenseBinding, error) {
	s.calls = append(s.calls, fingerprint)
	return models.LicenseBinding{UserID: userID, CourseID: courseID, DeviceFingerprint: fingerprint, LicenseKey: licenseKey, IsValid: true}, nil
}

type stubRedeemer struct {
	err error
}

func (s *stubRedeemer) Redeem(_ context.Context, code string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "act_" + code, nil
}

type fixture struct {
	svc      Service
	ledger   *stubLedger
	bindings *stubBindings
	redeemer *stubRedeemer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := NewRepository(context.Background(), kv.NewMemory(), "test:orders")
	require.NoError(t, err)

	f := &fixture{
		ledger:   &stubLedger{},
		bindings: &stubBindings{},
		redeemer: &stubRedeemer{},
	}
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	f.svc, err = NewService(repo, f.ledger, f.bindings, f.redeemer, metrics.NewLicensingMetrics(nil), logg, decimal.NewFromInt(99))
	require.NoError(t, err)
	return f
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, code, appErr.Code())
}

func TestCreateDefaultsAmount(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(99)))
	assert.NotEqual(t, uuid.Nil, order.OrderID)
}

func TestCreateRejectsNegativeAmount(t *testing.T) {
	f := newFixture(t)

	neg := decimal.NewFromInt(-1)
	_, err := f.svc.Create(context.Background(), "u1", "c1", enums.PaymentMethodWechat, &neg)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPurchaseLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	paid, err := f.svc.RecordPayment(ctx, order.OrderID, "txn-1", order.Amount, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, []string{"txn-1"}, f.ledger.appends)

	done, err := f.svc.Complete(ctx, "u1", order.OrderID, "fp_aaa")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, []string{"fp_aaa"}, f.bindings.calls)
}

func TestRecordPaymentGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RecordPayment(ctx, uuid.New(), "txn-1", decimal.NewFromInt(99), nil)
	requireCode(t, err, pkgerrors.CodeNotFound)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, order.OrderID, "txn-1", decimal.NewFromInt(1), nil)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.RecordPayment(ctx, order.OrderID, "txn-1", order.Amount, nil)
	require.NoError(t, err)

	// A second settlement against a paid order is an illegal transition.
	_, err = f.svc.RecordPayment(ctx, order.OrderID, "txn-2", order.Amount, nil)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, order.OrderID, "txn-1", order.Amount, nil)
	require.NoError(t, err)

	first, err := f.svc.Complete(ctx, "u1", order.OrderID, "fp_aaa")
	require.NoError(t, err)

	again, err := f.svc.Complete(ctx, "u1", order.OrderID, "fp_bbb")
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt, again.CompletedAt)

	// The replay must not reach the binding store.
	assert.Equal(t, []string{"fp_aaa"}, f.bindings.calls)
}

func TestCompleteRequiresPaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, "u1", order.OrderID, "fp_aaa")
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, f.bindings.calls)
}

func TestCancelPendingOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, "u1", order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, "u1", order.OrderID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.RecordPayment(ctx, order.OrderID, "txn-1", order.Amount, nil)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestOwnershipHidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "intruder", order.OrderID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Cancel(ctx, "intruder", order.OrderID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRedeemActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	wechat, err := f.svc.Create(ctx, "u1", "c1", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)
	_, err = f.svc.RedeemActivation(ctx, "u1", wechat.OrderID, "CODE-1")
	requireCode(t, err, pkgerrors.CodeValidation)

	order, err := f.svc.Create(ctx, "u1", "c2", enums.PaymentMethodActivationCode, nil)
	require.NoError(t, err)

	paid, err := f.svc.RedeemActivation(ctx, "u1", order.OrderID, "CODE-1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	assert.Equal(t, []string{"act_CODE-1"}, f.ledger.appends)
}

func TestListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	orig := now
	now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	defer func() { now = orig }()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, "u1", fmt.Sprintf("c%d", i), enums.PaymentMethodWechat, nil)
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, "u2", "other", enums.PaymentMethodWechat, nil)
	require.NoError(t, err)

	page, next, err := f.svc.List(ctx, "u1", pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotEmpty(t, next)
	assert.Equal(t, "c4", page[0].CourseID)
	assert.Equal(t, "c2", page[2].CourseID)

	rest, next, err := f.svc.List(ctx, "u1", pagination.Params{Limit: 3, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Empty(t, next)
	assert.Equal(t, "c1", rest[0].CourseID)
	assert.Equal(t, "c0", rest[1].CourseID)
}
