package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/api/responses"
	"github.com/stockroomhq/stockroom-backend/api/validators"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

const defaultLowStockLimit = 50

type inventoryLedger interface {
	GetAvailability(ctx context.Context, itemID uuid.UUID) (*inventory.Availability, error)
	ListLowStock(ctx context.Context, limit int) ([]models.InventoryItem, error)
	CreateItem(ctx context.Context, input inventory.CreateItemInput) (*models.InventoryItem, error)
	AdjustStock(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, error)
}

type InventoryController struct {
	ledger inventoryLedger
	logg   *logger.Logger
}

func NewInventoryController(ledger *inventory.Service, logg *logger.Logger) *InventoryController {
	return &InventoryController{ledger: ledger, logg: logg}
}

type createItemRequest struct {
	ItemID            string `json:"item_id" validate:"omitempty,uuid"`
	InitialQty        int    `json:"initial_qty" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

type adjustStockRequest struct {
	Delta       int    `json:"delta" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=correction restock"`
	Reason      string `json:"reason" validate:"required,max=500"`
	ReferenceID string `json:"reference_id" validate:"omitempty,uuid"`
}

type itemResponse struct {
	ItemID            uuid.UUID `json:"item_id"`
	Available         int       `json:"available"`
	Reserved          int       `json:"reserved"`
	OnHand            int       `json:"on_hand"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toItemResponse(item *models.InventoryItem) itemResponse {
	return itemResponse{
		ItemID:            item.ItemID,
		Available:         item.AvailableQty,
		Reserved:          item.ReservedQty,
		OnHand:            item.OnHandQty,
		LowStockThreshold: item.LowStockThreshold,
		LowStock:          item.LowStock(),
		UpdatedAt:         item.UpdatedAt,
	}
}

func (c *InventoryController) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, err := parseUUIDParam(r, "itemID")
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	availability, err := c.ledger.GetAvailability(ctx, itemID)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, availability)
}

func (c *InventoryController) ListLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultLowStockLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	items, err := c.ledger.ListLowStock(ctx, limit)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	responses.WriteSuccess(w, out)
}

func (c *InventoryController) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createItemRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	input := inventory.CreateItemInput{
		InitialQty:        req.InitialQty,
		LowStockThreshold: req.LowStockThreshold,
	}
	if req.ItemID != "" {
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be a valid UUID"))
			return
		}
		input.ItemID = itemID
	}

	item, err := c.ledger.CreateItem(ctx, input)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccessStatus(w, http.StatusCreated, toItemResponse(item))
}

func (c *InventoryController) AdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, err := parseUUIDParam(r, "itemID")
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	var req adjustStockRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	adjustmentType, err := enums.ParseAdjustmentType(req.Type)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid adjustment type"))
		return
	}

	input := inventory.AdjustInput{
		ItemID: itemID,
		Delta:  req.Delta,
		Type:   adjustmentType,
		Reason: req.Reason,
	}
	if req.ReferenceID != "" {
		refID, parseErr := uuid.Parse(req.ReferenceID)
		if parseErr != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference_id must be a valid UUID"))
			return
		}
		input.ReferenceID = &refID
	}

	item, err := c.ledger.AdjustStock(ctx, input)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, toItemResponse(item))
}
