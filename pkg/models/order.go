package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursevault/coursevault-backend/pkg/enums"
)

// Order represents one purchase attempt and its billing state. Once a
// terminal status is reached the record is immutable.
type Order struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        string              `json:"user_id"`
	CourseID      string              `json:"course_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.OrderStatus   `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}
