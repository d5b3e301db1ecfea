package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shopfloor/order-catalog/internal/catalog"
	"github.com/shopfloor/order-catalog/internal/config"
	"github.com/shopfloor/order-catalog/internal/httpx"
	kafkax "github.com/shopfloor/order-catalog/internal/kafka"
	"github.com/shopfloor/order-catalog/internal/orders"
	"github.com/shopfloor/order-catalog/internal/postgres"
	"github.com/shopfloor/order-catalog/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	svc := &orders.Service{
		Store:  &orders.Repo{DB: db},
		Events: prod,
		Name:   cfg.ServiceName,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: svc, Redis: rdb}).Register(router)
	(&httpx.ProductsHandler{Store: &catalog.Repo{DB: db}}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush remaining events
	prod.WaitClosed()
}
