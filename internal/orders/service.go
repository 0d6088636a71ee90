package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type StatusWriter interface {
	UpdateStatus(ctx context.Context, id int64, st Status) error
}

// Service runs order placement and status changes. Only UoW is required
// for placement; nil publishers disable events.
type Service struct {
	UoW           UnitOfWork
	Statuses      StatusWriter
	Placed        Publisher
	StatusChanged Publisher
	Metrics       *metrics.Metrics
	Log           *slog.Logger
	ServiceName   string
}

var tracer = otel.Tracer("github.com/ariefcatur/go-storefront-orders/internal/orders")

// PlaceOrder validates sub, then upserts the customer, writes the order with
// its lines and decrements stock in one unit of work. Any failure is an
// *OrderPlacementError and leaves nothing behind.
func (s *Service) PlaceOrder(ctx context.Context, sub Submission) (Placement, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()
	log := logging.FromContext(ctx, s.Log)

	p, err := s.place(ctx, sub)
	if err != nil {
		step := StepOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(step))
		s.Metrics.ObserveFailed(string(step))
		log.WarnContext(ctx, "order placement rolled back", "step", step, "err", err)
		return Placement{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", p.OrderID), attribute.Int("order.lines", len(p.Lines)))
	s.Metrics.ObservePlaced(time.Since(start).Seconds())
	log.InfoContext(ctx, "order placed",
		"order_id", p.OrderID, "customer_id", p.CustomerID, "total", p.Total.StringFixed(2), "lines", len(p.Lines))
	s.publishPlaced(ctx, sub, p)
	return p, nil
}

func (s *Service) place(ctx context.Context, sub Submission) (Placement, error) {
	total, err := validate(&sub)
	if err != nil {
		return Placement{}, &OrderPlacementError{Step: StepValidate, Err: err}
	}

	var p Placement
	err = s.UoW.Do(ctx, func(tx Tx) error {
		// fn may rerun on a retried transaction
		p = Placement{Total: total, Lines: make([]PlacedLine, 0, len(sub.Lines))}

		err := traced(ctx, StepCustomer, 0, func(ctx context.Context) (err error) {
			p.CustomerID, err = tx.UpsertCustomer(ctx, sub.Customer)
			return err
		})
		if err != nil {
			return err
		}

		err = traced(ctx, StepOrder, 0, func(ctx context.Context) (err error) {
			p.OrderID, err = tx.InsertOrder(ctx, NewOrder{
				CustomerID:   p.CustomerID,
				Total:        total,
				Status:       StatusPending,
				DeliveryType: sub.DeliveryType,
				Notes:        sub.Notes,
			})
			return err
		})
		if err != nil {
			return err
		}

		for _, l := range sub.Lines {
			var lineID int64
			err := traced(ctx, StepLine, l.ProductID, func(ctx context.Context) (err error) {
				lineID, err = tx.InsertLine(ctx, p.OrderID, l)
				return err
			})
			if err != nil {
				return err
			}
			err = traced(ctx, StepStock, l.ProductID, func(ctx context.Context) error {
				return tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			})
			if err != nil {
				return err
			}
			p.Lines = append(p.Lines, PlacedLine{ID: lineID, Line: l, Subtotal: l.Subtotal()})
		}
		return nil
	})
	if err != nil {
		var pe *OrderPlacementError
		if !errors.As(err, &pe) {
			step := StepBegin
			if postgres.TxOp(err) == "commit" {
				step = StepCommit
			}
			err = &OrderPlacementError{Step: step, Err: err}
		}
		return Placement{}, err
	}
	return p, nil
}

func traced(ctx context.Context, step Step, productID int64, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "orders."+string(step))
	defer span.End()
	if productID != 0 {
		span.SetAttributes(attribute.Int64("product.id", productID))
	}
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &OrderPlacementError{Step: step, ProductID: productID, Err: err}
	}
	return nil
}

// validate normalizes sub in place and returns the total recomputed from
// the line subtotals.
func validate(sub *Submission) (decimal.Decimal, error) {
	sub.Customer.Phone = strings.TrimSpace(sub.Customer.Phone)
	if sub.Customer.Phone == "" {
		return decimal.Zero, &ValidationError{Field: "cliente.telefono", Msg: "es obligatorio"}
	}
	if len(sub.Lines) == 0 {
		return decimal.Zero, &ValidationError{Field: "productos", Msg: "se requiere al menos un producto"}
	}

	total := decimal.Zero
	for i, l := range sub.Lines {
		field := fmt.Sprintf("productos[%d]", i)
		switch {
		case l.ProductID <= 0:
			return decimal.Zero, &ValidationError{Field: field + ".id", Msg: "debe ser un id de producto positivo"}
		case l.Quantity <= 0:
			return decimal.Zero, &ValidationError{Field: field + ".cantidad", Msg: "debe ser mayor que cero"}
		case l.UnitPrice.IsNegative():
			return decimal.Zero, &ValidationError{Field: field + ".precio", Msg: "no puede ser negativo"}
		case !l.UnitPrice.Equal(l.UnitPrice.Round(2)):
			return decimal.Zero, &ValidationError{Field: field + ".precio", Msg: "admite como máximo dos decimales"}
		}
		total = total.Add(l.Subtotal())
	}

	// clients sum floats; compare at cent precision
	if sub.Total.Valid && !sub.Total.Decimal.Round(2).Equal(total) {
		return decimal.Zero, &ValidationError{
			Field: "total",
			Msg:   fmt.Sprintf("se esperaba %s, se recibió %s", total.StringFixed(2), sub.Total.Decimal.StringFixed(2)),
			Err:   ErrTotalMismatch,
		}
	}
	return total, nil
}

// ChangeStatus sets the status of an existing order; postgres.ErrNotFound
// when there is none.
func (s *Service) ChangeStatus(ctx context.Context, id int64, raw string) (Status, error) {
	st, err := ParseStatus(raw)
	if err != nil {
		return "", err
	}
	if err := s.Statuses.UpdateStatus(ctx, id, st); err != nil {
		return "", err
	}
	logging.FromContext(ctx, s.Log).InfoContext(ctx, "order status changed", "order_id", id, "status", st)

	s.publish(ctx, s.StatusChanged, EventOrderStatusChanged, id, OrderStatusChangedPayload{OrderID: id, Status: st})
	return st, nil
}

func (s *Service) publishPlaced(ctx context.Context, sub Submission, p Placement) {
	items := make([]ItemQty, 0, len(p.Lines))
	for _, l := range p.Lines {
		items = append(items, ItemQty{ProductID: l.ProductID, Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	s.publish(ctx, s.Placed, EventOrderPlaced, p.OrderID, OrderPlacedPayload{
		OrderID:      p.OrderID,
		CustomerID:   p.CustomerID,
		Items:        items,
		Total:        p.Total,
		DeliveryType: sub.DeliveryType,
	})
}

func (s *Service) publish(ctx context.Context, pub Publisher, eventType string, orderID int64, payload any) {
	if pub == nil {
		return
	}
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env := NewEnvelope(eventType, s.ServiceName, traceID, orderID, kafkax.MustMarshal(payload))
	pub.Publish(PartitionKey(orderID), kafkax.MustMarshal(env), env.Headers()...)
}
