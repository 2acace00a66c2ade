package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/metrics"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox/payloads"
)

const actorService = "inventory"

// activePairConstraint is the partial unique index allowing one stock-holding
// reservation per (order_id, item_id). It backs reserve idempotency at the
// storage layer when concurrent retries race past the in-transaction checks.
const activePairConstraint = "ux_reservations_active_order_item"

var errReserveRaced = errors.New("reservation insert raced a concurrent retry")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// admitter is the advisory fast-path in front of the ledger. It may be
// stale; the ledger remains the only source of truth. TryAdmit reports
// whether the request may proceed and whether cached stock was actually
// decremented; only a real decrement gets compensated later.
type admitter interface {
	TryAdmit(ctx context.Context, itemID uuid.UUID, quantity int) (admitted, decremented bool, err error)
	Compensate(ctx context.Context, itemID uuid.UUID, quantity int) error
	Refresh(ctx context.Context, itemID uuid.UUID, available int) error
}

// Config carries the tunables for reservation holds.
type Config struct {
	HoldWindow  time.Duration
	LockTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HoldWindow <= 0 {
		c.HoldWindow = 15 * time.Minute
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 3 * time.Second
	}
	return c
}

// Service is the authoritative reservation ledger. All stock mutations run
// inside a transaction holding the per-item row lock, write an adjustment
// record, and queue their outbox event before commit.
type Service struct {
	repo      Repository
	tx        txRunner
	events    outboxPublisher
	admission admitter
	metrics   *metrics.InventoryMetrics
	cfg       Config
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the ledger. admission and ledgerMetrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	events outboxPublisher,
	admission admitter,
	ledgerMetrics *metrics.InventoryMetrics,
	cfg Config,
	logg *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		events:    events,
		admission: admission,
		metrics:   ledgerMetrics,
		cfg:       cfg.withDefaults(),
		logg:      logg,
		now:       time.Now,
	}
}

// ReserveInput identifies the order line requesting a hold.
type ReserveInput struct {
	ItemID   uuid.UUID
	OrderID  uuid.UUID
	Quantity int
}

// AdjustInput describes an operator stock mutation.
type AdjustInput struct {
	ItemID      uuid.UUID
	Delta       int
	Type        enums.AdjustmentType
	Reason      string
	ReferenceID *uuid.UUID
}

// CreateItemInput seeds a new inventory item.
type CreateItemInput struct {
	ItemID            uuid.UUID
	InitialQty        int
	LowStockThreshold int
}

// Availability is the read-side view of a single item.
type Availability struct {
	ItemID    uuid.UUID `json:"item_id"`
	Available int       `json:"available"`
	LowStock  bool      `json:"low_stock"`
}

// Reserve places a hold on available stock for an order line. Retries with
// the same order/item pair return the existing active reservation instead of
// holding stock twice.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (*models.Reservation, error) {
	if input.ItemID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_id and order_id are required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	decremented := false
	if s.admission != nil {
		admitted, claimed, err := s.admission.TryAdmit(ctx, input.ItemID, input.Quantity)
		switch {
		case err != nil:
			// Advisory only: a cache outage must not block reservations.
			s.metrics.IncAdmission("error")
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("admission cache unavailable: %v", err))
			}
		case !admitted:
			s.metrics.IncAdmission("denied")
			s.metrics.IncReservation("rejected_cached")
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"item_id": input.ItemID, "requested": input.Quantity})
		case claimed:
			s.metrics.IncAdmission("admitted")
			decremented = true
		default:
			// Cache miss: nothing was decremented, so there is nothing to
			// compensate. The ledger decides and Refresh repopulates.
			s.metrics.IncAdmission("miss")
		}
	}

	var (
		reservation  *models.Reservation
		replayed     bool
		insufficient *pkgerrors.Error
		available    int
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		existing, err := repo.FindActiveByOrderItem(ctx, input.OrderID, input.ItemID)
		if err != nil {
			return s.mapDBError(err, "looking up existing reservation")
		}
		if existing != nil {
			reservation = existing
			replayed = true
			return nil
		}

		item, err := repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return s.mapDBError(err, "locking inventory item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}

		// A concurrent retry of this pair may have committed while this
		// transaction waited on the row lock; the pre-lock lookup would not
		// have seen it. Re-check under the lock before touching stock.
		existing, err = repo.FindActiveByOrderItem(ctx, input.OrderID, input.ItemID)
		if err != nil {
			return s.mapDBError(err, "looking up existing reservation")
		}
		if existing != nil {
			reservation = existing
			replayed = true
			return nil
		}

		if item.AvailableQty < input.Quantity {
			// Commit anyway so the rejection event survives.
			available = item.AvailableQty
			insufficient = pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"item_id":   input.ItemID,
					"requested": input.Quantity,
					"available": item.AvailableQty,
				})
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryOutOfStock,
				AggregateType: enums.AggregateInventoryItem,
				AggregateID:   item.ItemID,
				OrderingKey:   item.ItemID.String(),
				Actor:         &outbox.ActorRef{Service: actorService},
				Data: payloads.InventoryOutOfStockEvent{
					ItemID:       item.ItemID,
					OrderID:      input.OrderID,
					RequestedQty: input.Quantity,
					AvailableQty: item.AvailableQty,
					RejectedAt:   s.now(),
				},
				Version: 1,
			})
		}

		before := item.AvailableQty
		item.AvailableQty -= input.Quantity
		item.ReservedQty += input.Quantity
		if err := repo.SaveItem(ctx, item); err != nil {
			return s.mapDBError(err, "saving inventory item")
		}

		res := &models.Reservation{
			ItemID:    input.ItemID,
			OrderID:   input.OrderID,
			Quantity:  input.Quantity,
			State:     enums.ReservationStateHeld,
			ExpiresAt: s.now().Add(s.cfg.HoldWindow),
		}
		if err := repo.CreateReservation(ctx, res); err != nil {
			if dbpkg.IsUniqueViolation(err, activePairConstraint) {
				return errReserveRaced
			}
			return s.mapDBError(err, "creating reservation")
		}

		if err := repo.CreateAdjustment(ctx, &models.AdjustmentRecord{
			ItemID:          item.ItemID,
			AdjustmentType:  enums.AdjustmentTypeSale,
			Delta:           -input.Quantity,
			AvailableBefore: before,
			AvailableAfter:  item.AvailableQty,
			ReferenceID:     &res.ID,
		}); err != nil {
			return s.mapDBError(err, "recording adjustment")
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryReserved,
			AggregateType: enums.AggregateReservation,
			AggregateID:   res.ID,
			OrderingKey:   item.ItemID.String(),
			Actor:         &outbox.ActorRef{Service: actorService},
			Data: payloads.InventoryReservedEvent{
				ReservationID: res.ID,
				ItemID:        item.ItemID,
				OrderID:       input.OrderID,
				Quantity:      input.Quantity,
				AvailableQty:  item.AvailableQty,
				ExpiresAt:     res.ExpiresAt,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		reservation = res
		available = item.AvailableQty
		return nil
	})
	if err != nil {
		if decremented {
			s.compensate(ctx, input.ItemID, input.Quantity)
		}
		if errors.Is(err, errReserveRaced) {
			// The unique index caught an insert race; the winner's row is
			// committed by now, so resolve to it.
			existing, lookupErr := s.repo.FindActiveByOrderItem(ctx, input.OrderID, input.ItemID)
			if lookupErr != nil {
				return nil, s.mapDBError(lookupErr, "looking up existing reservation")
			}
			if existing != nil {
				s.metrics.IncReservation("replayed")
				return existing, nil
			}
			s.metrics.IncReservation("error")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "reservation retry raced, try again")
		}
		s.metrics.IncReservation(outcomeFor(err))
		return nil, err
	}

	if insufficient != nil {
		if decremented {
			s.compensate(ctx, input.ItemID, input.Quantity)
		}
		s.refresh(ctx, input.ItemID, available)
		s.metrics.IncReservation("rejected")
		return nil, insufficient
	}

	if replayed {
		// No new stock was consumed; undo the advisory decrement.
		if decremented {
			s.compensate(ctx, input.ItemID, input.Quantity)
		}
		s.metrics.IncReservation("replayed")
		return reservation, nil
	}

	s.refresh(ctx, input.ItemID, available)
	s.metrics.IncReservation("reserved")
	return reservation, nil
}

// Confirm transitions a held reservation to confirmed. Stock counters do not
// move; confirmed quantity stays in reserved until release or fulfillment.
func (s *Service) Confirm(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation_id is required")
	}

	var confirmed *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		res, err := repo.FindReservationForUpdate(ctx, reservationID)
		if err != nil {
			return s.mapDBError(err, "locking reservation")
		}
		if res == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if res.State != enums.ReservationStateHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not held").
				WithDetails(map[string]any{"state": res.State})
		}
		if s.now().After(res.ExpiresAt) {
			// The reaper has not swept it yet, but the hold is gone.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation hold expired").
				WithDetails(map[string]any{"expires_at": res.ExpiresAt})
		}

		now := s.now()
		res.State = enums.ReservationStateConfirmed
		res.ConfirmedAt = &now
		if err := repo.SaveReservation(ctx, res); err != nil {
			return s.mapDBError(err, "saving reservation")
		}
		confirmed = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Release returns a reservation's quantity to available stock. Releasing an
// already released or expired reservation is a successful no-op.
func (s *Service) Release(ctx context.Context, reservationID uuid.UUID, reason enums.ReleaseReason) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation_id is required")
	}
	if !reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid release reason")
	}

	var (
		released  *models.Reservation
		available int
		changed   bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		res, err := repo.FindReservationForUpdate(ctx, reservationID)
		if err != nil {
			return s.mapDBError(err, "locking reservation")
		}
		if res == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if res.State.IsTerminal() {
			released = res
			return nil
		}

		out, avail, err := s.releaseLocked(ctx, repo, tx, res, reason)
		if err != nil {
			return err
		}
		released = out
		available = avail
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.refresh(ctx, released.ItemID, available)
	}
	return released, nil
}

// releaseLocked moves a locked, non-terminal reservation to its terminal
// state and returns its quantity to available stock. Caller holds the
// reservation row lock inside tx.
func (s *Service) releaseLocked(
	ctx context.Context,
	repo Repository,
	tx *gorm.DB,
	res *models.Reservation,
	reason enums.ReleaseReason,
) (*models.Reservation, int, error) {
	item, err := repo.FindItemForUpdate(ctx, res.ItemID)
	if err != nil {
		return nil, 0, s.mapDBError(err, "locking inventory item")
	}
	if item == nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeInternal, "inventory item missing for reservation")
	}

	before := item.AvailableQty
	item.AvailableQty += res.Quantity
	item.ReservedQty -= res.Quantity
	if err := repo.SaveItem(ctx, item); err != nil {
		return nil, 0, s.mapDBError(err, "saving inventory item")
	}

	now := s.now()
	res.State = reason.TerminalState()
	res.ReleasedAt = &now
	if err := repo.SaveReservation(ctx, res); err != nil {
		return nil, 0, s.mapDBError(err, "saving reservation")
	}

	reasonText := reason.String()
	if err := repo.CreateAdjustment(ctx, &models.AdjustmentRecord{
		ItemID:          item.ItemID,
		AdjustmentType:  enums.AdjustmentTypeRelease,
		Delta:           res.Quantity,
		AvailableBefore: before,
		AvailableAfter:  item.AvailableQty,
		ReferenceID:     &res.ID,
		Reason:          &reasonText,
	}); err != nil {
		return nil, 0, s.mapDBError(err, "recording adjustment")
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryReleased,
		AggregateType: enums.AggregateReservation,
		AggregateID:   res.ID,
		OrderingKey:   item.ItemID.String(),
		Actor:         &outbox.ActorRef{Service: actorService},
		Data: payloads.InventoryReleasedEvent{
			ReservationID: res.ID,
			ItemID:        item.ItemID,
			OrderID:       res.OrderID,
			Quantity:      res.Quantity,
			AvailableQty:  item.AvailableQty,
			Reason:        reason,
		},
		Version: 1,
	}); err != nil {
		return nil, 0, err
	}
	return res, item.AvailableQty, nil
}

// ConfirmByOrder confirms every held reservation for the order. Holds that
// already expired are left for the reaper. Returns the number confirmed.
func (s *Service) ConfirmByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}

	confirmed := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		held, err := repo.ListByOrder(ctx, orderID, []enums.ReservationState{enums.ReservationStateHeld})
		if err != nil {
			return s.mapDBError(err, "listing reservations")
		}
		now := s.now()
		for i := range held {
			res, err := repo.FindReservationForUpdate(ctx, held[i].ID)
			if err != nil {
				return s.mapDBError(err, "locking reservation")
			}
			if res == nil || res.State != enums.ReservationStateHeld || now.After(res.ExpiresAt) {
				continue
			}
			confirmedAt := now
			res.State = enums.ReservationStateConfirmed
			res.ConfirmedAt = &confirmedAt
			if err := repo.SaveReservation(ctx, res); err != nil {
				return s.mapDBError(err, "saving reservation")
			}
			confirmed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return confirmed, nil
}

// ReleaseByOrder releases every stock-holding reservation for the order,
// held or confirmed. Returns the number released.
func (s *Service) ReleaseByOrder(ctx context.Context, orderID uuid.UUID, reason enums.ReleaseReason) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	if !reason.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid release reason")
	}

	released := 0
	refreshes := map[uuid.UUID]int{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		active, err := repo.ListByOrder(ctx, orderID, []enums.ReservationState{
			enums.ReservationStateHeld,
			enums.ReservationStateConfirmed,
		})
		if err != nil {
			return s.mapDBError(err, "listing reservations")
		}
		for i := range active {
			res, err := repo.FindReservationForUpdate(ctx, active[i].ID)
			if err != nil {
				return s.mapDBError(err, "locking reservation")
			}
			if res == nil || res.State.IsTerminal() {
				continue
			}
			_, avail, err := s.releaseLocked(ctx, repo, tx, res, reason)
			if err != nil {
				return err
			}
			refreshes[res.ItemID] = avail
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for itemID, avail := range refreshes {
		s.refresh(ctx, itemID, avail)
	}
	return released, nil
}

// ExpireDue releases every held reservation whose hold window has lapsed, in
// one transaction per reservation so concurrent reapers stay safe. A failed
// row does not stop the sweep. Returns the number expired by this sweep.
func (s *Service) ExpireDue(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	due, err := s.repo.ListExpiredHeld(ctx, cutoff, limit)
	if err != nil {
		return 0, s.mapDBError(err, "listing expired holds")
	}

	expired := 0
	var errs []error
	for i := range due {
		res, err := s.Release(ctx, due[i].ID, enums.ReleaseReasonExpired)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire reservation %s: %w", due[i].ID, err))
			continue
		}
		// A concurrent reaper or release may have won; only count real sweeps.
		if res.State == enums.ReservationStateExpired {
			expired++
		}
	}
	s.metrics.AddExpired(expired)
	return expired, multierr.Combine(errs...)
}

// AdjustStock applies an operator delta to available stock. Negative deltas
// never push available below zero; reserved quantity is untouched.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (*models.InventoryItem, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid adjustment type")
	}

	var adjusted *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyLockTimeout(ctx, tx); err != nil {
			return err
		}

		item, err := repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return s.mapDBError(err, "locking inventory item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		if item.AvailableQty+input.Delta < 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drive available stock negative").
				WithDetails(map[string]any{
					"available": item.AvailableQty,
					"delta":     input.Delta,
				})
		}

		before := item.AvailableQty
		item.AvailableQty += input.Delta
		item.OnHandQty += input.Delta
		if err := repo.SaveItem(ctx, item); err != nil {
			return s.mapDBError(err, "saving inventory item")
		}

		record := &models.AdjustmentRecord{
			ItemID:          item.ItemID,
			AdjustmentType:  input.Type,
			Delta:           input.Delta,
			AvailableBefore: before,
			AvailableAfter:  item.AvailableQty,
			ReferenceID:     input.ReferenceID,
		}
		if input.Reason != "" {
			reason := input.Reason
			record.Reason = &reason
		}
		if err := repo.CreateAdjustment(ctx, record); err != nil {
			return s.mapDBError(err, "recording adjustment")
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   item.ItemID,
			OrderingKey:   item.ItemID.String(),
			Actor:         &outbox.ActorRef{Service: actorService},
			Data: payloads.InventoryAdjustedEvent{
				ItemID:          item.ItemID,
				AdjustmentType:  input.Type,
				Delta:           input.Delta,
				AvailableBefore: before,
				AvailableAfter:  item.AvailableQty,
				Reason:          input.Reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		adjusted = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, adjusted.ItemID, adjusted.AvailableQty)
	return adjusted, nil
}

// CreateItem registers a new item with its opening stock.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	if input.InitialQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity must not be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low stock threshold must not be negative")
	}
	if input.ItemID == uuid.Nil {
		input.ItemID = uuid.New()
	}

	var created *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			return s.mapDBError(err, "looking up inventory item")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory item already exists")
		}

		item := &models.InventoryItem{
			ItemID:            input.ItemID,
			AvailableQty:      input.InitialQty,
			OnHandQty:         input.InitialQty,
			LowStockThreshold: input.LowStockThreshold,
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return s.mapDBError(err, "creating inventory item")
		}

		if input.InitialQty > 0 {
			if err := repo.CreateAdjustment(ctx, &models.AdjustmentRecord{
				ItemID:          item.ItemID,
				AdjustmentType:  enums.AdjustmentTypeInitial,
				Delta:           input.InitialQty,
				AvailableBefore: 0,
				AvailableAfter:  input.InitialQty,
			}); err != nil {
				return s.mapDBError(err, "recording adjustment")
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryAdjusted,
				AggregateType: enums.AggregateInventoryItem,
				AggregateID:   item.ItemID,
				OrderingKey:   item.ItemID.String(),
				Actor:         &outbox.ActorRef{Service: actorService},
				Data: payloads.InventoryAdjustedEvent{
					ItemID:          item.ItemID,
					AdjustmentType:  enums.AdjustmentTypeInitial,
					Delta:           input.InitialQty,
					AvailableBefore: 0,
					AvailableAfter:  input.InitialQty,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, created.ItemID, created.AvailableQty)
	return created, nil
}

// GetAvailability returns the read-side view served to availability checks.
func (s *Service) GetAvailability(ctx context.Context, itemID uuid.UUID) (*Availability, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_id is required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, s.mapDBError(err, "looking up inventory item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	return &Availability{
		ItemID:    item.ItemID,
		Available: item.AvailableQty,
		LowStock:  item.LowStock(),
	}, nil
}

// GetReservation returns a reservation by ID.
func (s *Service) GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation_id is required")
	}
	res, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return nil, s.mapDBError(err, "looking up reservation")
	}
	if res == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return res, nil
}

// ListLowStock returns items at or below their low stock threshold.
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]models.InventoryItem, error) {
	items, err := s.repo.ListLowStock(ctx, limit)
	if err != nil {
		return nil, s.mapDBError(err, "listing low stock items")
	}
	return items, nil
}

// applyLockTimeout bounds row lock waits for the current transaction so a
// hot item degrades into fast retryable failures instead of piling up.
func (s *Service) applyLockTimeout(ctx context.Context, tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds())
	if err := tx.WithContext(ctx).Exec(timeout).Error; err != nil {
		return s.mapDBError(err, "setting lock timeout")
	}
	return nil
}

func (s *Service) mapDBError(err error, op string) error {
	if pkgerrors.IsLockTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, op+": lock wait exceeded")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

func (s *Service) compensate(ctx context.Context, itemID uuid.UUID, quantity int) {
	if s.admission == nil {
		return
	}
	if err := s.admission.Compensate(ctx, itemID, quantity); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("admission compensation failed: %v", err))
	}
}

func (s *Service) refresh(ctx context.Context, itemID uuid.UUID, available int) {
	if s.admission == nil {
		return
	}
	if err := s.admission.Refresh(ctx, itemID, available); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("admission refresh failed: %v", err))
	}
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeLockTimeout:
		return "lock_timeout"
	case pkgerrors.CodeInsufficientStock:
		return "rejected"
	default:
		return "error"
	}
}
