package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// Reservation is a time-bounded hold against an item's available stock,
// tied to one order. Rows are never deleted; terminal states are kept for
// the audit trail.
type Reservation struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID      uuid.UUID              `gorm:"column:item_id;type:uuid;not null;index"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index:idx_reservations_order_item"`
	Quantity    int                    `gorm:"column:quantity;not null"`
	State       enums.ReservationState `gorm:"column:state;not null;default:held;index:idx_reservations_order_item"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt   time.Time              `gorm:"column:expires_at;not null"`
	ConfirmedAt *time.Time             `gorm:"column:confirmed_at"`
	ReleasedAt  *time.Time             `gorm:"column:released_at"`
}
