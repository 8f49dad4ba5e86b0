package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderPlacedEvent{
		OrderID:     orderID,
		CustomerID:  uuid.New(),
		Lines:       []payloads.OrderLine{{ProductID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("9.99")}},
		TotalAmount: decimal.RequireFromString("29.97"),
		PlacedAt:    time.Now().UTC(),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Descriptor.EventType != enums.EventOrderPlaced {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || len(payload.Lines) != 1 || payload.Lines[0].Quantity != 3 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if !payload.TotalAmount.Equal(decimal.RequireFromString("29.97")) {
		t.Fatalf("total mismatch %s", payload.TotalAmount)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_shipped_legacy"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"payment_id":"00000000-0000-0000-0000-000000000000"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.Nil,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryRoutesByConcern(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		eventType enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		topic     string
	}{
		{enums.EventOrderStatusChanged, enums.AggregateOrder, "orders-topic"},
		{enums.EventPaymentFailed, enums.AggregatePayment, "payments-topic"},
		{enums.EventInventoryAdjusted, enums.AggregateProduct, "inventory-topic"},
	}
	for _, tc := range cases {
		resolved, err := reg.Resolve(models.OutboxEvent{
			EventType:     tc.eventType,
			AggregateType: tc.aggregate,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, validPayload(t, tc.eventType)),
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.eventType, err)
		}
		if resolved.Descriptor.Topic != tc.topic {
			t.Fatalf("%s: expected topic %s got %s", tc.eventType, tc.topic, resolved.Descriptor.Topic)
		}
	}

	if topics := reg.Topics(); len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %v", topics)
	}
}

func TestEventRegistryRejectsInvalidPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	payload := mustMarshal(t, payloads.PaymentFailedEvent{
		PaymentID: uuid.New(),
		OrderID:   uuid.New(),
		Method:    enums.PaymentMethodCreditCard,
		Amount:    decimal.Zero,
		FailedAt:  time.Now().UTC(),
	})
	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payload),
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable validation error, got %v", err)
	}
}

func TestEventRegistryRejectsUnknownEnvelopeVersion(t *testing.T) {
	reg := newTestEventRegistry(t)

	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    maxEnvelopeVersion + 1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       validPayload(t, enums.EventOrderStatusChanged),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable version error, got %v", err)
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"}); err == nil {
		t.Fatalf("expected error when topics are missing")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		OrdersTopic:    "orders-topic",
		PaymentsTopic:  "payments-topic",
		InventoryTopic: "inventory-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func validPayload(t *testing.T, eventType enums.OutboxEventType) []byte {
	t.Helper()
	now := time.Now().UTC()
	switch eventType {
	case enums.EventOrderStatusChanged:
		return mustMarshal(t, payloads.OrderStatusChangedEvent{
			OrderID:        uuid.New(),
			CustomerID:     uuid.New(),
			PreviousStatus: enums.OrderStatusPending,
			Status:         enums.OrderStatusCancelled,
			ChangedAt:      now,
		})
	case enums.EventPaymentFailed:
		return mustMarshal(t, payloads.PaymentFailedEvent{
			PaymentID: uuid.New(),
			OrderID:   uuid.New(),
			Method:    enums.PaymentMethodCreditCard,
			Amount:    decimal.RequireFromString("10.00"),
			FailedAt:  now,
		})
	case enums.EventInventoryAdjusted:
		return mustMarshal(t, payloads.InventoryAdjustedEvent{
			ProductID:      uuid.New(),
			ChangeType:     enums.InventoryChangeAdjustment,
			QuantityChange: -2,
			NewStockLevel:  8,
		})
	}
	t.Fatalf("no fixture for %s", eventType)
	return nil
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
