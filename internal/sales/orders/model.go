package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// PaymentMethod names how an order is settled.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentPix    PaymentMethod = "PIX"
	PaymentBoleto PaymentMethod = "BOLETO"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentPix, PaymentBoleto:
		return true
	}
	return false
}

// Order is a sale to a customer. Number is a human-facing sequence that is
// unique across all orders; Total always equals the sum of the item totals.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	Number        int64           `json:"number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is one product line. Price is the unit price captured at order
// time; later product price changes never touch it.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Qty       int64           `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// ListFilters narrows order listings. From and To bound created_at
// (inclusive).
type ListFilters struct {
	CustomerID *uuid.UUID
	Status     Status
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}
