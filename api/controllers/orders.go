package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursevault/coursevault-backend/api/middleware"
	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/api/validators"
	"github.com/coursevault/coursevault-backend/internal/orders"
	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/models"
	"github.com/coursevault/coursevault-backend/pkg/pagination"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

type orderResponse struct {
	OrderID       uuid.UUID  `json:"order_id"`
	CourseID      string     `json:"course_id"`
	Amount        string     `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func orderResponseFromModel(order models.Order) orderResponse {
	return orderResponse{
		OrderID:       order.OrderID,
		CourseID:      order.CourseID,
		Amount:        order.Amount.String(),
		PaymentMethod: order.PaymentMethod.String(),
		Status:        order.Status.String(),
		CreatedAt:     order.CreatedAt,
		PaidAt:        order.PaidAt,
		CompletedAt:   order.CompletedAt,
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return "", false
	}
	return userID, true
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

type orderCreateRequest struct {
	CourseID      string `json:"course_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	Amount        string `json:"amount"`
}

// OrderCreate opens a pending order for a course.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var payload orderCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method"))
			return
		}

		var amount *decimal.Decimal
		if strings.TrimSpace(payload.Amount) != "" {
			parsed, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
			amount = &parsed
		}

		ctx := logg.WithCourseID(r.Context(), payload.CourseID)
		order, err := svc.Create(ctx, userID, payload.CourseID, method, amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orderResponseFromModel(order))
	}
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// OrderList pages through the caller's orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, next, err := svc.List(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := orderListResponse{Orders: make([]orderResponse, 0, len(page)), NextCursor: next}
		for _, order := range page {
			out.Orders = append(out.Orders, orderResponseFromModel(order))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderGet returns one of the caller's orders.
func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponseFromModel(order))
	}
}

type orderPaymentRequest struct {
	TransactionID string         `json:"transaction_id" validate:"required"`
	Amount        string         `json:"amount" validate:"required"`
	Details       map[string]any `json:"details"`
}

// OrderPayment books a provider settlement against a pending order.
func OrderPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.RecordPayment(ctx, orderID, strings.TrimSpace(payload.TransactionID), amount, payload.Details)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponseFromModel(order))
	}
}

type orderRedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// OrderRedeem settles an activation-code order by consuming the code.
func OrderRedeem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderRedeemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.RedeemActivation(ctx, userID, orderID, strings.TrimSpace(payload.Code))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponseFromModel(order))
	}
}

type orderCompleteRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" validate:"required"`
}

// OrderComplete finishes a paid order and binds the license to the
// presenting device.
func OrderComplete(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderCompleteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.Complete(ctx, userID, orderID, strings.TrimSpace(payload.DeviceFingerprint))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponseFromModel(order))
	}
}

// OrderCancel abandons one of the caller's pending orders.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.Cancel(ctx, userID, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponseFromModel(order))
	}
}
