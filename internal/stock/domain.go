package stock

import (
	"time"

	"github.com/google/uuid"
)

// Reason classifies why a stock movement happened.
type Reason string

const (
	ReasonInitialLoad      Reason = "INITIAL_LOAD"
	ReasonOrderFulfilled   Reason = "ORDER_FULFILLED"
	ReasonOrderCancelled   Reason = "ORDER_CANCELLED"
	ReasonManualAdjustment Reason = "MANUAL_ADJUSTMENT"
)

// Valid reports whether r is one of the known movement reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonInitialLoad, ReasonOrderFulfilled, ReasonOrderCancelled, ReasonManualAdjustment:
		return true
	}
	return false
}

// Movement is one append-only ledger entry. Qty is signed: positive entries
// add stock, negative entries remove it. Entries are never updated or
// deleted; corrections are new entries.
type Movement struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	Qty         int64      `json:"qty"`
	Reason      Reason     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MovementFilters narrows ledger listings.
type MovementFilters struct {
	ProductID *uuid.UUID
	Reason    Reason
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// AdjustmentRequest is the payload for recording a movement by hand. Reason
// defaults to MANUAL_ADJUSTMENT; ReferenceID optionally ties the entry to the
// record that caused it.
type AdjustmentRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	Qty         int64      `json:"qty" validate:"required"`
	Reason      Reason     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id"`
	Note        string     `json:"note"`
}

// LowStockItem is a product whose on-hand quantity sits at or below its
// configured minimum.
type LowStockItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	CurrentQty int64     `json:"current_qty"`
	MinStock   int64     `json:"min_stock"`
}
