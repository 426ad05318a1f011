package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the payload for opening a new order. Number is
// optional; when absent the next free sequence number is assigned. Item
// prices are optional and default to the product's current price.
type CreateOrderRequest struct {
	CustomerID    uuid.UUID         `json:"customer_id" validate:"required"`
	Number        int64             `json:"number" validate:"omitempty,min=1"`
	PaymentMethod PaymentMethod     `json:"payment_method" validate:"required"`
	DueDate       *time.Time        `json:"due_date"`
	Items         []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItem struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Qty       int64            `json:"qty" validate:"required,min=1"`
	Price     *decimal.Decimal `json:"price"`
}

// UpdateOrderRequest patches the order header. Items and totals are frozen
// after creation; only lifecycle fields may change.
type UpdateOrderRequest struct {
	Status        *Status        `json:"status"`
	PaymentMethod *PaymentMethod `json:"payment_method"`
	DueDate       *time.Time     `json:"due_date"`
}
