package inventory

import (
	"context"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type StockReader interface {
	StockLevels(ctx context.Context, ids []int64) ([]catalog.StockLevel, error)
}

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service watches placed orders and reports products whose remaining stock
// fell to Threshold or below.
type Service struct {
	Stock       StockReader
	Dedup       Deduper // nil processes redeliveries again
	StockLow    orders.Publisher
	Threshold   int
	Metrics     *metrics.Metrics
	Log         *slog.Logger
	ServiceName string
}

// HandleOrderPlaced is installed as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	log := logging.FromContext(ctx, s.Log)

	env, err := kafkax.Decode[orders.Envelope]("envelope", m.Value)
	if err != nil {
		return kafkax.Permanent(err)
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			log.DebugContext(ctx, "duplicate event skipped", "event_id", env.EventID)
			return nil
		}
	}

	if err := s.check(ctx, env); err != nil {
		// let a redelivery try again
		if s.Dedup != nil {
			if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
				log.WarnContext(ctx, "dedup forget failed", "event_id", env.EventID, "err", ferr)
			}
		}
		return err
	}
	return nil
}

func (s *Service) check(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.Decode[orders.OrderPlacedPayload]("payload", env.Payload)
	if err != nil {
		return kafkax.Permanent(err)
	}

	seen := make(map[int64]bool, len(p.Items))
	ids := make([]int64, 0, len(p.Items))
	for _, it := range p.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	levels, err := s.Stock.StockLevels(ctx, ids)
	if err != nil {
		return err
	}
	for _, l := range levels {
		if l.Stock > s.Threshold {
			continue
		}
		s.publishStockLow(ctx, env, p.OrderID, l)
	}
	return nil
}

func (s *Service) publishStockLow(ctx context.Context, cause orders.Envelope, orderID int64, l catalog.StockLevel) {
	logging.FromContext(ctx, s.Log).InfoContext(ctx, "stock low",
		"product_id", l.ProductID, "stock", l.Stock, "threshold", s.Threshold, "order_id", orderID)
	s.Metrics.ObserveStockLow()
	if s.StockLow == nil {
		return
	}

	env := orders.NewEnvelope(orders.EventStockLow, s.ServiceName, cause.TraceID, orderID,
		kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: l.ProductID,
			Name:      l.Name,
			Stock:     l.Stock,
			Threshold: s.Threshold,
			OrderID:   orderID,
		}))
	s.StockLow.Publish([]byte(strconv.FormatInt(l.ProductID, 10)), kafkax.MustMarshal(env), env.Headers()...)
}
