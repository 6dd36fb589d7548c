// Package orders drives the purchase lifecycle: pending orders move to
// paid when a payment is booked, paid orders move to completed and
// bind a license, and pending orders may be cancelled. No other
// transition is legal.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/metrics"
	"github.com/coursevault/coursevault-backend/pkg/models"
	"github.com/coursevault/coursevault-backend/pkg/pagination"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

var now = time.Now

// paymentLedger is the slice of the payment ledger the service needs.
type paymentLedger interface {
	Append(ctx context.Context, orderID uuid.UUID, transactionID string, amount decimal.Decimal, method enums.PaymentMethod, details map[string]any) (models.PaymentRecord, error)
}

// bindingStore installs license bindings for completed orders.
type bindingStore interface {
	CreateOrRefresh(ctx context.Context, userID, courseID, deviceFingerprint, licenseKey string) (models.LicenseBinding, error)
}

// codeRedeemer turns an activation code into a settlement transaction
// id, consuming the code.
type codeRedeemer interface {
	Redeem(ctx context.Context, code string) (string, error)
}

// Service exposes the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, userID, courseID string, method enums.PaymentMethod, amount *decimal.Decimal) (models.Order, error)
	Get(ctx context.Context, userID string, orderID uuid.UUID) (models.Order, error)
	List(ctx context.Context, userID string, params pagination.Params) ([]models.Order, string, error)
	RecordPayment(ctx context.Context, orderID uuid.UUID, transactionID string, amount decimal.Decimal, details map[string]any) (models.Order, error)
	RedeemActivation(ctx context.Context, userID string, orderID uuid.UUID, code string) (models.Order, error)
	Complete(ctx context.Context, userID string, orderID uuid.UUID, deviceFingerprint string) (models.Order, error)
	Cancel(ctx context.Context, userID string, orderID uuid.UUID) (models.Order, error)
}

type service struct {
	repo          *Repository
	ledger        paymentLedger
	bindings      bindingStore
	redeemer      codeRedeemer
	metrics       *metrics.LicensingMetrics
	logg          *logger.Logger
	defaultAmount decimal.Decimal
}

// NewService builds the order service.
func NewService(repo *Repository, ledger paymentLedger, bindings bindingStore, redeemer codeRedeemer, m *metrics.LicensingMetrics, logg *logger.Logger, defaultAmount decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("payment ledger required")
	}
	if bindings == nil {
		return nil, fmt.Errorf("binding store required")
	}
	if redeemer == nil {
		return nil, fmt.Errorf("code redeemer required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		ledger:        ledger,
		bindings:      bindings,
		redeemer:      redeemer,
		metrics:       m,
		logg:          logg,
		defaultAmount: defaultAmount,
	}, nil
}

// Create opens a pending order. A nil amount falls back to the
// configured course price.
func (s *service) Create(ctx context.Context, userID, courseID string, method enums.PaymentMethod, amount *decimal.Decimal) (models.Order, error) {
	price := s.defaultAmount
	if amount != nil {
		if amount.IsNegative() {
			return models.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
		}
		price = *amount
	}

	order := models.Order{
		OrderID:       uuid.New(),
		UserID:        userID,
		CourseID:      courseID,
		Amount:        price,
		PaymentMethod: method,
		Status:        enums.OrderStatusPending,
		CreatedAt:     now().UTC(),
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "orders")
	}

	ctx = s.logg.WithOrderID(ctx, order.OrderID.String())
	s.logg.Info(ctx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, userID string, orderID uuid.UUID) (models.Order, error) {
	return s.owned(ctx, userID, orderID)
}

// List pages through the user's orders, newest first. The returned
// cursor is empty on the last page.
func (s *service) List(ctx context.Context, userID string, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	all := s.repo.ListByUser(ctx, userID)

	start := 0
	if cursor != nil {
		start = len(all)
		for i, order := range all {
			if order.CreatedAt.Before(cursor.CreatedAt) ||
				(order.CreatedAt.Equal(cursor.CreatedAt) && order.OrderID.String() < cursor.ID.String()) {
				start = i
				break
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	next := ""
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.OrderID})
	}
	return page, next, nil
}

// RecordPayment books a settlement against a pending order and moves
// it to paid. The ledger record is written before the order mutates,
// so a failure in between leaves the order pending and the booked
// record is absorbed by the ledger's transaction dedupe on retry.
func (s *service) RecordPayment(ctx context.Context, orderID uuid.UUID, transactionID string, amount decimal.Decimal, details map[string]any) (models.Order, error) {
	order, ok := s.repo.GetOrder(ctx, orderID)
	if !ok {
		return models.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		return models.Order{}, s.transitionError(order, enums.OrderStatusPaid)
	}
	if !amount.Equal(order.Amount) {
		return models.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match order").
			WithDetails(map[string]string{"expected": order.Amount.String(), "got": amount.String()})
	}

	if _, err := s.ledger.Append(ctx, orderID, transactionID, amount, order.PaymentMethod, details); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "payments")
	}

	ts := now().UTC()
	from := order.Status
	order.Status = enums.OrderStatusPaid
	order.PaidAt = &ts
	if err := s.repo.Update(ctx, order); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "orders")
	}

	s.metrics.ObserveTransition(from, order.Status)
	ctx = s.logg.WithOrderID(ctx, order.OrderID.String())
	s.logg.Info(ctx, "payment recorded")
	return order, nil
}

// RedeemActivation settles a pending activation-code order by
// consuming the code and booking the resulting transaction.
func (s *service) RedeemActivation(ctx context.Context, userID string, orderID uuid.UUID, code string) (models.Order, error) {
	order, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.PaymentMethod != enums.PaymentMethodActivationCode {
		return models.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable by activation code")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		return models.Order{}, s.transitionError(order, enums.OrderStatusPaid)
	}

	transactionID, err := s.redeemer.Redeem(ctx, code)
	if err != nil {
		return models.Order{}, err
	}
	return s.RecordPayment(ctx, orderID, transactionID, order.Amount, map[string]any{"source": "activation_code"})
}

// Complete finishes a paid order: it mints a license key and binds it
// to the presenting device. Completing an already completed order
// returns it unchanged, so a replayed confirmation neither errors nor
// re-binds.
func (s *service) Complete(ctx context.Context, userID string, orderID uuid.UUID, deviceFingerprint string) (models.Order, error) {
	order, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == enums.OrderStatusCompleted {
		return order, nil
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCompleted) {
		return models.Order{}, s.transitionError(order, enums.OrderStatusCompleted)
	}

	licenseKey := "lic_" + uuid.NewString()
	if _, err := s.bindings.CreateOrRefresh(ctx, order.UserID, order.CourseID, deviceFingerprint, licenseKey); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "bindings")
	}

	ts := now().UTC()
	from := order.Status
	order.Status = enums.OrderStatusCompleted
	order.CompletedAt = &ts
	if err := s.repo.Update(ctx, order); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "orders")
	}

	s.metrics.ObserveTransition(from, order.Status)
	ctx = s.logg.WithOrderID(ctx, order.OrderID.String())
	s.logg.Info(ctx, "order completed")
	return order, nil
}

// Cancel abandons a pending order.
func (s *service) Cancel(ctx context.Context, userID string, orderID uuid.UUID) (models.Order, error) {
	order, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return models.Order{}, s.transitionError(order, enums.OrderStatusCancelled)
	}

	from := order.Status
	order.Status = enums.OrderStatusCancelled
	if err := s.repo.Update(ctx, order); err != nil {
		return models.Order{}, s.observeStoreFailure(err, "orders")
	}

	s.metrics.ObserveTransition(from, order.Status)
	ctx = s.logg.WithOrderID(ctx, order.OrderID.String())
	s.logg.Info(ctx, "order cancelled")
	return order, nil
}

// observeStoreFailure counts persistence failures by collection before
// handing the error back.
func (s *service) observeStoreFailure(err error, collection string) error {
	if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeStoreIO {
		s.metrics.ObserveStoreFailure(collection)
	}
	return err
}

// owned resolves an order and hides other users' orders behind not
// found.
func (s *service) owned(ctx context.Context, userID string, orderID uuid.UUID) (models.Order, error) {
	order, ok := s.repo.GetOrder(ctx, orderID)
	if !ok || order.UserID != userID {
		return models.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) transitionError(order models.Order, next enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
}
