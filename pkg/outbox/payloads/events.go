package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// InventoryReservedEvent is emitted when a hold is placed on stock.
type InventoryReservedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	OrderID       uuid.UUID `json:"order_id"`
	Quantity      int       `json:"quantity"`
	AvailableQty  int       `json:"available_qty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// InventoryReleasedEvent is emitted when a hold returns stock to the pool.
type InventoryReleasedEvent struct {
	ReservationID uuid.UUID           `json:"reservation_id"`
	ItemID        uuid.UUID           `json:"item_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Quantity      int                 `json:"quantity"`
	AvailableQty  int                 `json:"available_qty"`
	Reason        enums.ReleaseReason `json:"reason"`
}

// InventoryOutOfStockEvent reports an authoritative rejection for demand signals.
type InventoryOutOfStockEvent struct {
	ItemID       uuid.UUID `json:"item_id"`
	OrderID      uuid.UUID `json:"order_id"`
	RequestedQty int       `json:"requested_qty"`
	AvailableQty int       `json:"available_qty"`
	RejectedAt   time.Time `json:"rejected_at"`
}

// InventoryAdjustedEvent mirrors the audit row written for manual adjustments.
type InventoryAdjustedEvent struct {
	ItemID          uuid.UUID            `json:"item_id"`
	AdjustmentType  enums.AdjustmentType `json:"adjustment_type"`
	Delta           int                  `json:"delta"`
	AvailableBefore int                  `json:"available_before"`
	AvailableAfter  int                  `json:"available_after"`
	Reason          string               `json:"reason,omitempty"`
}

// OrderCreatedEvent arrives from the order workflow and triggers reservations.
type OrderCreatedEvent struct {
	OrderID uuid.UUID        `json:"order_id"`
	Lines   []OrderEventLine `json:"lines"`
}

// OrderEventLine is a single item/quantity pair on an order event.
type OrderEventLine struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// OrderPaidEvent confirms every reservation held for the order.
type OrderPaidEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	PaidAt  time.Time `json:"paid_at"`
}

// OrderCanceledEvent releases every reservation held for the order.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}
