package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/coursevault/coursevault-backend/api/middleware"
	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/models"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// paymentLedger is the slice of the ledger the payment endpoints need.
type paymentLedger interface {
	ListByUser(ctx context.Context, userID string) []models.PaymentRecord
}

type paymentRecordResponse struct {
	RecordID      uuid.UUID `json:"record_id"`
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// PaymentList returns the caller's payment records, newest first.
func PaymentList(ledger paymentLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment ledger unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		records := ledger.ListByUser(r.Context(), userID)
		out := make([]paymentRecordResponse, 0, len(records))
		for _, record := range records {
			out = append(out, paymentRecordResponse{
				RecordID:      record.RecordID,
				OrderID:       record.OrderID,
				TransactionID: record.TransactionID,
				Amount:        record.Amount.String(),
				PaymentMethod: record.PaymentMethod.String(),
				RecordedAt:    record.RecordedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
