package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursevault/coursevault-backend/pkg/enums"
)

// PaymentRecord is an immutable ledger entry for one completed payment
// transaction. Records are only ever appended.
type PaymentRecord struct {
	RecordID      uuid.UUID           `json:"record_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	TransactionID string              `json:"transaction_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	RecordedAt    time.Time           `json:"recorded_at"`
	Details       map[string]any      `json:"details,omitempty"`
}
