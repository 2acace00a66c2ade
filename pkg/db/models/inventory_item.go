package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is the authoritative stock record for one sellable item.
// available + reserved == on_hand holds at every committed state; the row
// is mutated only under its row lock inside the ledger's transactions.
type InventoryItem struct {
	ItemID            uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty       int       `gorm:"column:reserved_qty;not null;default:0"`
	OnHandQty         int       `gorm:"column:on_hand_qty;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	Version           int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LowStock reports whether available stock is at or below the item threshold.
func (i InventoryItem) LowStock() bool {
	return i.AvailableQty <= i.LowStockThreshold
}
