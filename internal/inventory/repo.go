package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// Repository manages persistence for inventory items, reservations and the
// adjustment audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateItem(ctx context.Context, item *models.InventoryItem) error
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
	FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error)
	SaveItem(ctx context.Context, item *models.InventoryItem) error
	ListLowStock(ctx context.Context, limit int) ([]models.InventoryItem, error)

	CreateReservation(ctx context.Context, res *models.Reservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindReservationForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActiveByOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Reservation, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, states []enums.ReservationState) ([]models.Reservation, error)
	ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
	SaveReservation(ctx context.Context, res *models.Reservation) error

	CreateAdjustment(ctx context.Context, record *models.AdjustmentRecord) error
	ListAdjustmentsByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.AdjustmentRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindItemForUpdate takes the per-item row lock. Writers to the same item
// serialize here; writers to different items never contend.
func (r *repository) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("item_id = ?", itemID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) SaveItem(ctx context.Context, item *models.InventoryItem) error {
	item.Version++
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) ListLowStock(ctx context.Context, limit int) ([]models.InventoryItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("available_qty <= low_stock_threshold").
		Order("available_qty ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repository) CreateReservation(ctx context.Context, res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return r.findReservation(ctx, id, false)
}

func (r *repository) FindReservationForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return r.findReservation(ctx, id, true)
}

func (r *repository) findReservation(ctx context.Context, id uuid.UUID, locked bool) (*models.Reservation, error) {
	var res models.Reservation
	query := r.db.WithContext(ctx)
	if locked && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("id = ?", id).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// FindActiveByOrderItem locates a reservation still holding stock for the
// order/item pair. Retried reserve calls resolve to this row.
func (r *repository) FindActiveByOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND item_id = ? AND state IN ?", orderID, itemID,
			[]enums.ReservationState{enums.ReservationStateHeld, enums.ReservationStateConfirmed}).
		Order("created_at ASC").
		First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID, states []enums.ReservationState) ([]models.Reservation, error) {
	var rows []models.Reservation
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}
	err := query.Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at < ?", enums.ReservationStateHeld, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) SaveReservation(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

func (r *repository) CreateAdjustment(ctx context.Context, record *models.AdjustmentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListAdjustmentsByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]models.AdjustmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AdjustmentRecord
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
