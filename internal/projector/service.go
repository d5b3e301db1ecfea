// Package projector keeps the Redis order-status cache in step with the
// order event streams, so status reads can skip the database.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/shopfloor/order-catalog/internal/kafka"
	"github.com/shopfloor/order-catalog/internal/orders"
	"github.com/shopfloor/order-catalog/internal/redisx"
)

type Cache interface {
	// MarkSeen returns false when the event id was already processed.
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	SetStatus(ctx context.Context, orderID string, status orders.Status) error
}

type Service struct {
	Cache Cache
}

// HandleEvent is wired as the consumer handler for all three order topics.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	first, err := s.Cache.MarkSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.Cache.SetStatus(ctx, p.OrderID, orders.StatusPending)
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.Cache.SetStatus(ctx, p.OrderID, p.To)
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.Cache.SetStatus(ctx, p.OrderID, orders.StatusCancelled)
	}
	return nil // unknown event types are skipped, not retried
}

type RedisCache struct {
	R       *redis.Client
	Service string
}

func (c *RedisCache) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, c.Service, eventID)
	return c.R.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
}

func (c *RedisCache) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, err := json.Marshal(map[string]any{"status": status})
	if err != nil {
		return err
	}
	return c.R.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
