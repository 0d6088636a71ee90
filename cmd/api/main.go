package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	decimal.MarshalJSONWithoutQuotes = true

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		fatal(log, "tracer init", err)
	}

	// DB
	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		fatal(log, "db connect", err)
	}
	defer pool.Close()
	db := postgres.New(pool, cfg.Tx, log)
	if cfg.DBMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			fatal(log, "db migrate", err)
		}
		log.Info("schema applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := &orders.Service{
		UoW:         &orders.Store{DB: db},
		Statuses:    &orders.Repo{DB: db},
		Metrics:     m,
		Log:         log,
		ServiceName: cfg.ServiceName,
	}

	// Kafka producers, one per topic
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
		changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
		placed.Start()
		changed.Start()
		svc.Placed, svc.StatusChanged = placed, changed
		producers = append(producers, placed, changed)
	} else {
		log.Info("KAFKA_BROKERS empty, events disabled")
	}

	oh := &httpx.OrdersHandler{Service: svc, Reads: &orders.Repo{DB: db}}

	// Redis
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable, idempotency keys will be ignored until it recovers", "err", err)
		}
		oh.Idem = redisx.NewIdempotency(rdb)
	} else {
		log.Info("REDIS_ADDR empty, idempotency keys disabled")
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		AllowedOrigin: cfg.AllowedOrigin,
		Log:           log,
		Metrics:       metrics.Handler(reg),
	})
	ch := &httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}}
	router.Route("/api", func(r chi.Router) {
		ch.Register(r)
		oh.Register(r)
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "listen", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("http shutdown", "err", err)
	}
	for _, p := range producers {
		p.Close()
	}
	if err := shutdownTracer(ctx2); err != nil {
		log.Error("tracer shutdown", "err", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
