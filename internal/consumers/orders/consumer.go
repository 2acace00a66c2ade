package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox/payloads"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox/registry"
)

const consumerName = "orders"

type ledger interface {
	Reserve(ctx context.Context, input inventory.ReserveInput) (*models.Reservation, error)
	ConfirmByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID, reason enums.ReleaseReason) (int, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// NewDecoderRegistry returns the decoders for the order events this
// consumer understands.
func NewDecoderRegistry() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCreated, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.OrderCreatedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	decoders.Register(enums.EventOrderPaid, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.OrderPaidEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	decoders.Register(enums.EventOrderCanceled, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.OrderCanceledEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	return decoders
}

// Service consumes order lifecycle events from Pub/Sub and drives the
// reservation ledger, guarded by Redis idempotency markers.
type Service struct {
	subscription *gcppubsub.Subscriber
	ledger       ledger
	manager      idempotencyChecker
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewService creates the order events consumer.
func NewService(
	subscription *gcppubsub.Subscriber,
	ledgerSvc ledger,
	manager idempotencyChecker,
	decoders *registry.DecoderRegistry,
	logg *logger.Logger,
) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if ledgerSvc == nil {
		return nil, errors.New("ledger is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if decoders == nil {
		decoders = NewDecoderRegistry()
	}
	return &Service{
		subscription: subscription,
		ledger:       ledgerSvc,
		manager:      manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming order messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := s.logg.WithFields(ctx, fields)

	eventType, envelope, err := s.buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid order event envelope")
		return processResult{}
	}
	fields["event_id"] = envelope.EventID
	fields["event_type"] = eventType
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	logCtx = s.logg.WithFields(ctx, fields)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	already, err := s.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := s.handle(logCtx, eventType, envelope); err != nil {
		if retryable(err) {
			s.logg.Error(logCtx, "order event handler failed", err)
			_ = s.manager.Delete(logCtx, consumerName, eventID)
			return processResult{nack: true}
		}
		// Permanent failures keep the processed marker so redelivery is dropped.
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "order event dropped")
		return processResult{}
	}

	s.logg.Info(logCtx, "order event handled")
	return processResult{}
}

func (s *Service) handle(ctx context.Context, eventType enums.OutboxEventType, envelope *outbox.PayloadEnvelope) error {
	decoded, err := s.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding event payload")
	}

	switch event := decoded.(type) {
	case payloads.OrderCreatedEvent:
		return s.handleOrderCreated(ctx, event)
	case payloads.OrderPaidEvent:
		_, err := s.ledger.ConfirmByOrder(ctx, event.OrderID)
		return err
	case payloads.OrderCanceledEvent:
		_, err := s.ledger.ReleaseByOrder(ctx, event.OrderID, enums.ReleaseReasonCancelled)
		return err
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported event type %s", eventType))
	}
}

func (s *Service) handleOrderCreated(ctx context.Context, event payloads.OrderCreatedEvent) error {
	if len(event.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order event has no lines")
	}
	for _, line := range event.Lines {
		_, err := s.ledger.Reserve(ctx, inventory.ReserveInput{
			ItemID:   line.ItemID,
			OrderID:  event.OrderID,
			Quantity: line.Quantity,
		})
		if err == nil {
			continue
		}
		// A sold-out line is a business outcome, not a delivery failure: the
		// ledger already recorded the rejection. Keep reserving other lines.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			lineCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id": event.OrderID.String(),
				"item_id":  line.ItemID.String(),
			})
			s.logg.Warn(lineCtx, "order line rejected for insufficient stock")
			continue
		}
		return err
	}
	return nil
}

func (s *Service) buildEnvelope(msg *gcppubsub.Message) (enums.OutboxEventType, *outbox.PayloadEnvelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return "", nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	if stored.EventID == "" {
		return "", nil, errors.New("event id missing")
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return "", nil, fmt.Errorf("event_type: %w", err)
	}
	return eventType, &stored, nil
}

func retryable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}
