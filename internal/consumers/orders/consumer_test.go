package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/outbox"
)

type fakeLedger struct {
	reserved   []inventory.ReserveInput
	confirmed  []uuid.UUID
	released   []uuid.UUID
	reserveErr func(input inventory.ReserveInput) error
}

func (f *fakeLedger) Reserve(_ context.Context, input inventory.ReserveInput) (*models.Reservation, error) {
	if f.reserveErr != nil {
		if err := f.reserveErr(input); err != nil {
			return nil, err
		}
	}
	f.reserved = append(f.reserved, input)
	return &models.Reservation{ID: uuid.New(), ItemID: input.ItemID, OrderID: input.OrderID}, nil
}

func (f *fakeLedger) ConfirmByOrder(_ context.Context, orderID uuid.UUID) (int, error) {
	f.confirmed = append(f.confirmed, orderID)
	return 1, nil
}

func (f *fakeLedger) ReleaseByOrder(_ context.Context, orderID uuid.UUID, _ enums.ReleaseReason) (int, error) {
	f.released = append(f.released, orderID)
	return 1, nil
}

type fakeManager struct {
	processed map[uuid.UUID]bool
	deleted   []uuid.UUID
	err       error
}

func (f *fakeManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.processed == nil {
		f.processed = map[uuid.UUID]bool{}
	}
	if f.processed[eventID] {
		return true, nil
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeManager) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	f.deleted = append(f.deleted, eventID)
	delete(f.processed, eventID)
	return nil
}

func newTestConsumer(t *testing.T, ledgerSvc *fakeLedger, manager *fakeManager) *Service {
	t.Helper()
	return &Service{
		ledger:   ledgerSvc,
		manager:  manager,
		decoders: NewDecoderRegistry(),
		logg:     logger.New(logger.Options{ServiceName: "orders-test"}),
	}
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &gcppubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestProcessOrderCreatedReservesEveryLine(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{}
	consumer := newTestConsumer(t, ledgerSvc, &fakeManager{})
	orderID := uuid.New()
	msg := buildMessage(t, enums.EventOrderCreated, map[string]any{
		"order_id": orderID,
		"lines": []map[string]any{
			{"item_id": uuid.New(), "quantity": 2},
			{"item_id": uuid.New(), "quantity": 1},
		},
	})

	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatalf("expected ack")
	}
	if len(ledgerSvc.reserved) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(ledgerSvc.reserved))
	}
	for _, input := range ledgerSvc.reserved {
		if input.OrderID != orderID {
			t.Fatalf("expected order %s, got %s", orderID, input.OrderID)
		}
	}
}

func TestProcessOrderCreatedSoldOutLineStillAcks(t *testing.T) {
	t.Parallel()

	soldOut := uuid.New()
	ledgerSvc := &fakeLedger{
		reserveErr: func(input inventory.ReserveInput) error {
			if input.ItemID == soldOut {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
			}
			return nil
		},
	}
	consumer := newTestConsumer(t, ledgerSvc, &fakeManager{})
	msg := buildMessage(t, enums.EventOrderCreated, map[string]any{
		"order_id": uuid.New(),
		"lines": []map[string]any{
			{"item_id": soldOut, "quantity": 5},
			{"item_id": uuid.New(), "quantity": 1},
		},
	})

	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatalf("sold-out line must not trigger redelivery")
	}
	if len(ledgerSvc.reserved) != 1 {
		t.Fatalf("expected remaining line reserved, got %d", len(ledgerSvc.reserved))
	}
}

func TestProcessOrderCreatedRetryableErrorNacks(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{
		reserveErr: func(inventory.ReserveInput) error {
			return pkgerrors.New(pkgerrors.CodeLockTimeout, "lock wait exceeded")
		},
	}
	manager := &fakeManager{}
	consumer := newTestConsumer(t, ledgerSvc, manager)
	msg := buildMessage(t, enums.EventOrderCreated, map[string]any{
		"order_id": uuid.New(),
		"lines":    []map[string]any{{"item_id": uuid.New(), "quantity": 1}},
	})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("retryable failure must nack")
	}
	if len(manager.deleted) != 1 {
		t.Fatalf("expected processed marker cleared for retry, got %d deletions", len(manager.deleted))
	}
}

func TestProcessOrderPaidConfirms(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{}
	consumer := newTestConsumer(t, ledgerSvc, &fakeManager{})
	orderID := uuid.New()
	msg := buildMessage(t, enums.EventOrderPaid, map[string]any{
		"order_id": orderID,
		"paid_at":  time.Now().UTC(),
	})

	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("expected ack")
	}
	if len(ledgerSvc.confirmed) != 1 || ledgerSvc.confirmed[0] != orderID {
		t.Fatalf("expected order %s confirmed", orderID)
	}
}

func TestProcessOrderCanceledReleases(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{}
	consumer := newTestConsumer(t, ledgerSvc, &fakeManager{})
	orderID := uuid.New()
	msg := buildMessage(t, enums.EventOrderCanceled, map[string]any{
		"order_id":    orderID,
		"canceled_at": time.Now().UTC(),
	})

	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("expected ack")
	}
	if len(ledgerSvc.released) != 1 || ledgerSvc.released[0] != orderID {
		t.Fatalf("expected order %s released", orderID)
	}
}

func TestProcessDuplicateEventDropped(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{}
	manager := &fakeManager{}
	consumer := newTestConsumer(t, ledgerSvc, manager)
	msg := buildMessage(t, enums.EventOrderPaid, map[string]any{
		"order_id": uuid.New(),
		"paid_at":  time.Now().UTC(),
	})

	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("first delivery must ack")
	}
	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("duplicate delivery must ack without reprocessing")
	}
	if len(ledgerSvc.confirmed) != 1 {
		t.Fatalf("expected exactly 1 confirmation, got %d", len(ledgerSvc.confirmed))
	}
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	t.Parallel()

	consumer := newTestConsumer(t, &fakeLedger{}, &fakeManager{err: errors.New("redis down")})
	msg := buildMessage(t, enums.EventOrderPaid, map[string]any{
		"order_id": uuid.New(),
		"paid_at":  time.Now().UTC(),
	})
	if !consumer.process(context.Background(), msg).nack {
		t.Fatalf("idempotency outage must nack for redelivery")
	}
}

func TestProcessMalformedEnvelopeDropped(t *testing.T) {
	t.Parallel()

	ledgerSvc := &fakeLedger{}
	consumer := newTestConsumer(t, ledgerSvc, &fakeManager{})
	msg := &gcppubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte("not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderPaid)},
	}
	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("malformed envelopes must not be redelivered forever")
	}
	if len(ledgerSvc.confirmed) != 0 {
		t.Fatalf("malformed envelope must not reach the ledger")
	}
}

func TestProcessUnknownEventTypeDropped(t *testing.T) {
	t.Parallel()

	consumer := newTestConsumer(t, &fakeLedger{}, &fakeManager{})
	msg := buildMessage(t, enums.EventOrderPaid, map[string]any{"order_id": uuid.New()})
	msg.Attributes["event_type"] = "mystery"
	if consumer.process(context.Background(), msg).nack {
		t.Fatalf("unknown event types must be dropped, not redelivered")
	}
}
