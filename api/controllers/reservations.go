package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/api/responses"
	"github.com/stockroomhq/stockroom-backend/api/validators"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

type reservationLedger interface {
	Reserve(ctx context.Context, input inventory.ReserveInput) (*models.Reservation, error)
	Confirm(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	Release(ctx context.Context, reservationID uuid.UUID, reason enums.ReleaseReason) (*models.Reservation, error)
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
}

type ReservationsController struct {
	ledger reservationLedger
	logg   *logger.Logger
}

func NewReservationsController(ledger *inventory.Service, logg *logger.Logger) *ReservationsController {
	return &ReservationsController{ledger: ledger, logg: logg}
}

type createReservationRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type releaseReservationRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=cancelled manual"`
}

type reservationResponse struct {
	ID          uuid.UUID  `json:"id"`
	ItemID      uuid.UUID  `json:"item_id"`
	OrderID     uuid.UUID  `json:"order_id"`
	Quantity    int        `json:"quantity"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

func toReservationResponse(res *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:          res.ID,
		ItemID:      res.ItemID,
		OrderID:     res.OrderID,
		Quantity:    res.Quantity,
		State:       res.State.String(),
		CreatedAt:   res.CreatedAt,
		ExpiresAt:   res.ExpiresAt,
		ConfirmedAt: res.ConfirmedAt,
		ReleasedAt:  res.ReleasedAt,
	}
}

func (c *ReservationsController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createReservationRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be a valid UUID"))
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a valid UUID"))
		return
	}

	res, err := c.ledger.Reserve(ctx, inventory.ReserveInput{
		ItemID:   itemID,
		OrderID:  orderID,
		Quantity: req.Quantity,
	})
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccessStatus(w, http.StatusCreated, toReservationResponse(res))
}

func (c *ReservationsController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reservationID, err := parseUUIDParam(r, "reservationID")
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	res, err := c.ledger.GetReservation(ctx, reservationID)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, toReservationResponse(res))
}

func (c *ReservationsController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reservationID, err := parseUUIDParam(r, "reservationID")
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	res, err := c.ledger.Confirm(ctx, reservationID)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, toReservationResponse(res))
}

func (c *ReservationsController) Release(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reservationID, err := parseUUIDParam(r, "reservationID")
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	reason := enums.ReleaseReasonCancelled
	if r.ContentLength != 0 {
		var req releaseReservationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		if req.Reason != "" {
			parsed, parseErr := enums.ParseReleaseReason(req.Reason)
			if parseErr != nil {
				responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid release reason"))
				return
			}
			reason = parsed
		}
	}

	res, err := c.ledger.Release(ctx, reservationID, reason)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, toReservationResponse(res))
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a valid UUID")
	}
	return parsed, nil
}
