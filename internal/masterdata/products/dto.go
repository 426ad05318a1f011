package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the payload for creating a product. An initial
// quantity above zero is recorded in the stock ledger as an initial load.
type CreateProductRequest struct {
	SKU        string          `json:"sku" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	Unit       string          `json:"unit" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	CurrentQty int64           `json:"current_qty" validate:"gte=0"`
	MinStock   int64           `json:"min_stock" validate:"gte=0"`
	IsActive   *bool           `json:"is_active"`
	CategoryID *uuid.UUID      `json:"category_id"`
	SupplierID *uuid.UUID      `json:"supplier_id"`
}

// UpdateProductRequest is the payload for updating a product. Quantity is
// deliberately absent; it belongs to the stock ledger.
type UpdateProductRequest struct {
	SKU        *string          `json:"sku"`
	Name       *string          `json:"name"`
	Unit       *string          `json:"unit"`
	Price      *decimal.Decimal `json:"price"`
	Cost       *decimal.Decimal `json:"cost"`
	MinStock   *int64           `json:"min_stock" validate:"omitempty,gte=0"`
	IsActive   *bool            `json:"is_active"`
	CategoryID *uuid.UUID       `json:"category_id"`
	SupplierID *uuid.UUID       `json:"supplier_id"`
}
