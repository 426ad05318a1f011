package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item tracked in stock. CurrentQty changes
// only through stock movements; the CRUD surface never writes it after the
// initial load.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	CurrentQty int64           `json:"current_qty"`
	MinStock   int64           `json:"min_stock"`
	IsActive   bool            `json:"is_active"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	SupplierID *uuid.UUID      `json:"supplier_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search     string
	CategoryID *uuid.UUID
	SupplierID *uuid.UUID
	OnlyActive bool
	Page       int
	Limit      int
}
