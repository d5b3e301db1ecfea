package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/shopfloor/order-catalog/internal/kafka"
)

// Store is the persistence boundary the service talks to. The pgx Repo is
// the production implementation.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
	ListRecent(ctx context.Context, limit int) ([]Order, error)
	Transition(ctx context.Context, id string, to Status) (Status, []ItemQty, error)
	Cancel(ctx context.Context, id string) (Status, []ItemQty, error)
	PriceItems(ctx context.Context, items []ItemInput) (int, []OrderItem, error)
}

type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store  Store
	Events EventPublisher // nil disables publishing
	Name   string         // producer name stamped on envelopes
}

// CreateOrder checks out a new order. With a non-empty externalID a repeated
// call returns the previously created order (existed=true) instead of
// creating a second one.
func (s *Service) CreateOrder(ctx context.Context, externalID string, cust CustomerInfo, items []ItemInput) (o *Order, existed bool, err error) {
	if strings.TrimSpace(cust.Name) == "" {
		return nil, false, fmt.Errorf("%w: customer name required", ErrInvalidInput)
	}
	if err := validateItems(items); err != nil {
		return nil, false, err
	}

	if externalID != "" {
		prev, err := s.Store.FindByExternalID(ctx, externalID)
		if err == nil {
			return prev, true, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, false, err
		}
	}

	o = &Order{
		ID:            uuid.NewString(),
		ExternalID:    externalID,
		CustomerName:  cust.Name,
		CustomerEmail: cust.Email,
		Notes:         cust.Notes,
		Items:         make([]OrderItem, len(items)),
	}
	for i, it := range items {
		o.Items[i] = OrderItem{ProductID: it.ProductID, Qty: it.Qty}
	}

	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return nil, false, err
	}

	s.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:      o.ID,
		ExternalID:   o.ExternalID,
		CustomerName: o.CustomerName,
		Items:        o.Items,
		TotalCents:   o.TotalCents,
	})
	return o, false, nil
}

// CancelOrder restores stock for every item and marks the order CANCELLED.
// Not idempotent: an already-cancelled order fails with ErrInvalidOperation.
func (s *Service) CancelOrder(ctx context.Context, id string) error {
	prev, restocked, err := s.Store.Cancel(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, TopicOrderCancelled, EventOrderCancelled, id, OrderCancelledPayload{
		OrderID:        id,
		PreviousStatus: prev,
		Restocked:      restocked,
	})
	return nil
}

// UpdateStatus applies one step of the status table. A CANCELLED target runs
// the cancellation routine, so stock restore can never be skipped by going
// through the generic verb.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) error {
	if !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	prev, restocked, err := s.Store.Transition(ctx, id, to)
	if err != nil {
		return err
	}
	if to == StatusCancelled {
		s.publish(ctx, TopicOrderCancelled, EventOrderCancelled, id, OrderCancelledPayload{
			OrderID:        id,
			PreviousStatus: prev,
			Restocked:      restocked,
		})
		return nil
	}
	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, id, OrderStatusChangedPayload{
		OrderID: id,
		From:    prev,
		To:      to,
	})
	return nil
}

// CalculateTotal prices the items against the current catalog without
// persisting anything.
func (s *Service) CalculateTotal(ctx context.Context, items []ItemInput) (int, error) {
	if err := validateItems(items); err != nil {
		return 0, err
	}
	total, _, err := s.Store.PriceItems(ctx, items)
	return total, err
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.Store.GetOrder(ctx, id)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.ListRecent(ctx, limit)
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty item list", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: missing product id", ErrInvalidInput)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("%w: qty must be positive for product %s", ErrInvalidInput, it.ProductID)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("%w: duplicate product %s", ErrInvalidInput, it.ProductID)
		}
		seen[it.ProductID] = true
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		TraceID:       TraceFrom(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
