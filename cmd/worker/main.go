package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shopfloor/order-catalog/internal/config"
	kafkax "github.com/shopfloor/order-catalog/internal/kafka"
	"github.com/shopfloor/order-catalog/internal/orders"
	"github.com/shopfloor/order-catalog/internal/projector"
	"github.com/shopfloor/order-catalog/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Cache: &projector.RedisCache{R: rdb, Service: cfg.ServiceName + "-projector"},
	}

	group := getenv("PROJECTOR_GROUP", "status-projector")
	workers := mustAtoi(os.Getenv("PROJECTOR_WORKERS"), 4)
	topics := []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged, orders.TopicOrderCancelled}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topics, workers)

	go func() {
		log.Printf("projector started: group=%s topics=%v workers=%d", group, topics, workers)
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down projector...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
