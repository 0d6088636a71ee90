package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-inventory"

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}).
		With("service", name)
	slog.SetDefault(log)

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Error("inventory watcher needs KAFKA_BROKERS and REDIS_ADDR")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	db := postgres.New(pool, cfg.Tx, log)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pLow := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024, log)
	pLow.Start()

	reg := prometheus.NewRegistry()
	svc := &inventory.Service{
		Stock:       &catalog.Repo{DB: db},
		Dedup:       redisx.NewDedup(rdb, "inventory"),
		StockLow:    pLow,
		Threshold:   cfg.LowStockThreshold,
		Metrics:     metrics.New(reg),
		Log:         log,
		ServiceName: name,
	}

	if addr := cfg.InventoryMetricsAddr; addr != "" {
		go func() {
			if err := http.ListenAndServe(addr, metrics.Handler(reg)); err != nil {
				log.Error("metrics listener", "err", err)
			}
		}()
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderPlaced, cfg.InventoryWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("inventory consumer started",
			"group", cfg.InventoryGroup, "topic", orders.TopicOrderPlaced, "workers", cfg.InventoryWorkers)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("consumer did not stop in time")
	}
	pLow.Close()
}
