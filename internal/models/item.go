package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a BRG row attached to a serial number.
type InventoryItem struct {
	ID        int64           `json:"id"`
	NoSeri    string          `json:"no_seri"`
	ItemCode  string          `json:"item_code" validate:"required"`
	ItemName  string          `json:"item_name"`
	Qty       decimal.Decimal `json:"qty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateItemsRequest is the body of POST /api/create-brg.
type CreateItemsRequest struct {
	NoSeri string          `json:"no_seri" validate:"required"`
	Items  []InventoryItem `json:"items" validate:"required,min=1,dive"`
}
