package projector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/shopfloor/order-catalog/internal/kafka"
	"github.com/shopfloor/order-catalog/internal/orders"
)

type mockCache struct {
	seen     map[string]bool
	statuses map[string]orders.Status
}

func newMockCache() *mockCache {
	return &mockCache{seen: map[string]bool{}, statuses: map[string]orders.Status{}}
}

func (m *mockCache) MarkSeen(_ context.Context, eventID string) (bool, error) {
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *mockCache) SetStatus(_ context.Context, orderID string, status orders.Status) error {
	m.statuses[orderID] = status
	return nil
}

func envelope(eventType string, payload any) (string, kafkago.Message) {
	id := uuid.NewString()
	env := orders.Envelope{
		EventID:      id,
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      kafkax.MustMarshal(payload),
	}
	return id, kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleEvent_StatusChanged(t *testing.T) {
	cache := newMockCache()
	svc := &Service{Cache: cache}

	_, m := envelope(orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusPending, To: orders.StatusProcessing,
	})
	if err := svc.HandleEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cache.statuses["o1"] != orders.StatusProcessing {
		t.Errorf("cached status = %s, want PROCESSING", cache.statuses["o1"])
	}
}

func TestHandleEvent_CreatedAndCancelled(t *testing.T) {
	cache := newMockCache()
	svc := &Service{Cache: cache}
	ctx := context.Background()

	_, created := envelope(orders.EventOrderCreated, orders.OrderCreatedPayload{OrderID: "o1"})
	if err := svc.HandleEvent(ctx, created); err != nil {
		t.Fatalf("created: %v", err)
	}
	if cache.statuses["o1"] != orders.StatusPending {
		t.Errorf("cached status = %s, want PENDING", cache.statuses["o1"])
	}

	_, cancelled := envelope(orders.EventOrderCancelled, orders.OrderCancelledPayload{OrderID: "o1", PreviousStatus: orders.StatusPending})
	if err := svc.HandleEvent(ctx, cancelled); err != nil {
		t.Fatalf("cancelled: %v", err)
	}
	if cache.statuses["o1"] != orders.StatusCancelled {
		t.Errorf("cached status = %s, want CANCELLED", cache.statuses["o1"])
	}
}

func TestHandleEvent_DedupsByEventID(t *testing.T) {
	cache := newMockCache()
	svc := &Service{Cache: cache}
	ctx := context.Background()

	_, m := envelope(orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusPending, To: orders.StatusProcessing,
	})
	if err := svc.HandleEvent(ctx, m); err != nil {
		t.Fatalf("first: %v", err)
	}
	cache.statuses["o1"] = orders.StatusShipped // later state arrives

	// redelivery of the old event must not clobber the newer status
	if err := svc.HandleEvent(ctx, m); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if cache.statuses["o1"] != orders.StatusShipped {
		t.Errorf("redelivered event overwrote status: %s", cache.statuses["o1"])
	}
}

func TestHandleEvent_UnknownTypeSkipped(t *testing.T) {
	cache := newMockCache()
	svc := &Service{Cache: cache}

	_, m := envelope("SomethingElse", map[string]string{"order_id": "o1"})
	if err := svc.HandleEvent(context.Background(), m); err != nil {
		t.Fatalf("unknown type must commit, got %v", err)
	}
	if len(cache.statuses) != 0 {
		t.Error("unknown event must not write status")
	}
}

func TestHandleEvent_BadJSON(t *testing.T) {
	svc := &Service{Cache: newMockCache()}
	err := svc.HandleEvent(context.Background(), kafkago.Message{Value: []byte("{nope")})
	if err == nil {
		t.Error("malformed envelope must error so the offset is not committed")
	}
}
