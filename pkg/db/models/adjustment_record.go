package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// AdjustmentRecord is the append-only audit trail of inventory mutations.
// Every committed change to an InventoryItem writes exactly one row in the
// same transaction.
type AdjustmentRecord struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID          uuid.UUID            `gorm:"column:item_id;type:uuid;not null;index"`
	AdjustmentType  enums.AdjustmentType `gorm:"column:adjustment_type;not null"`
	Delta           int                  `gorm:"column:delta;not null"`
	AvailableBefore int                  `gorm:"column:available_before;not null"`
	AvailableAfter  int                  `gorm:"column:available_after;not null"`
	ReferenceID     *uuid.UUID           `gorm:"column:reference_id;type:uuid"`
	Reason          *string              `gorm:"column:reason"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
