package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/orders/ordertest"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

func newService(store *ordertest.Store) (*orders.Service, *ordertest.Publisher, *metrics.Metrics) {
	pub := &ordertest.Publisher{}
	m := metrics.New(prometheus.NewRegistry())
	return &orders.Service{
		UoW:           store,
		Statuses:      store,
		Placed:        pub,
		StatusChanged: pub,
		Metrics:       m,
		Log:           logging.Discard(),
		ServiceName:   "storefront-api",
	}, pub, m
}

func line(id int64, qty int, price string) orders.Line {
	return orders.Line{ProductID: id, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func total(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestPlaceOrder(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	svc, pub, m := newService(store)

	p, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer:     orders.Customer{Phone: "555-1", Name: "Ana"},
		Lines:        []orders.Line{line(7, 2, "10")},
		Total:        total("20"),
		DeliveryType: "domicilio",
	})

	require.NoError(t, err)
	assert.NotZero(t, p.OrderID)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 3, store.Stock(7))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Subtotal.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, p.OrderID, lines[0].OrderID)

	o, ok := store.Order(p.OrderID)
	require.True(t, ok)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, p.CustomerID, o.CustomerID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPlaced))

	sent := pub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, orders.PartitionKey(p.OrderID), sent[0].Key)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(sent[0].Value, &env))
	assert.Equal(t, orders.EventOrderPlaced, env.EventType)
	assert.Equal(t, "storefront-api", env.Producer)
	var payload orders.OrderPlacedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, p.OrderID, payload.OrderID)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].Qty)
}

func TestPlaceOrderWithoutTotalUsesComputedTotal(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(1, 10)
	store.AddProduct(2, 10)
	svc, _, _ := newService(store)

	p, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-2"},
		Lines:    []orders.Line{line(1, 3, "12.50"), line(2, 1, "0.99")},
	})

	require.NoError(t, err)
	assert.Equal(t, "38.49", p.Total.StringFixed(2))
	require.Len(t, p.Lines, 2)
	assert.Equal(t, "37.50", p.Lines[0].Subtotal.StringFixed(2))
}

func TestSamePhoneUpdatesCustomer(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 10)
	svc, _, _ := newService(store)
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: "555-1", Name: "Ana", City: "Puebla"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: " 555-1 ", Name: "Ana María"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})
	require.NoError(t, err)

	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	require.Len(t, store.Customers(), 1)
	c, ok := store.CustomerByPhone("555-1")
	require.True(t, ok)
	assert.Equal(t, "Ana María", c.Name)
	assert.Empty(t, c.City, "last write wins on every field")
}

func TestMissingProductRollsBackEverything(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(1, 5)
	store.AddProduct(3, 5)
	svc, pub, m := newService(store)

	_, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-9"},
		Lines:    []orders.Line{line(1, 1, "10"), line(2, 1, "10"), line(3, 1, "10")},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, orders.ErrProductNotFound)
	var pe *orders.OrderPlacementError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, orders.StepLine, pe.Step)
	assert.Equal(t, int64(2), pe.ProductID)

	assert.Zero(t, store.OrderCount())
	assert.Empty(t, store.Lines())
	assert.Empty(t, store.Customers())
	assert.Equal(t, 5, store.Stock(1))
	assert.Equal(t, 5, store.Stock(3))
	assert.Empty(t, pub.Sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersFailed.WithLabelValues("line")))
}

func TestExistingCustomerSurvivesFailedOrderUnchanged(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(1, 1)
	svc, _, _ := newService(store)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: "555-3", Name: "Luis"},
		Lines:    []orders.Line{line(1, 1, "10")},
	})
	require.NoError(t, err)

	_, err = svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: "555-3", Name: "Otro"},
		Lines:    []orders.Line{line(1, 1, "10")},
	})

	var se *orders.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Requested)
	assert.Zero(t, se.Available)
	assert.Equal(t, orders.StepStock, orders.StepOf(err))
	c, _ := store.CustomerByPhone("555-3")
	assert.Equal(t, "Luis", c.Name)
	assert.Equal(t, 1, store.OrderCount())
}

func TestConcurrentOrdersForLastUnits(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 3)
	svc, _, _ := newService(store)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), orders.Submission{
				Customer: orders.Customer{Phone: "555-7"},
				Lines:    []orders.Line{line(7, 3, "10")},
			})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, orders.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Zero(t, store.Stock(7))
	assert.Equal(t, 1, store.OrderCount())
}

func TestValidation(t *testing.T) {
	valid := func() orders.Submission {
		return orders.Submission{
			Customer: orders.Customer{Phone: "555-1"},
			Lines:    []orders.Line{line(7, 2, "10")},
		}
	}
	tests := []struct {
		name  string
		edit  func(s *orders.Submission)
		field string
	}{
		{"missing phone", func(s *orders.Submission) { s.Customer.Phone = "  " }, "cliente.telefono"},
		{"no lines", func(s *orders.Submission) { s.Lines = nil }, "productos"},
		{"bad product id", func(s *orders.Submission) { s.Lines[0].ProductID = 0 }, "productos[0].id"},
		{"zero quantity", func(s *orders.Submission) { s.Lines[0].Quantity = 0 }, "productos[0].cantidad"},
		{"negative price", func(s *orders.Submission) { s.Lines[0].UnitPrice = decimal.NewFromInt(-1) }, "productos[0].precio"},
		{"sub-cent price", func(s *orders.Submission) { s.Lines[0].UnitPrice = decimal.RequireFromString("1.005") }, "productos[0].precio"},
		{"total mismatch", func(s *orders.Submission) { s.Total = total("19.99") }, "total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ordertest.NewStore()
			store.AddProduct(7, 5)
			svc, _, _ := newService(store)
			sub := valid()
			tt.edit(&sub)

			_, err := svc.PlaceOrder(context.Background(), sub)

			var ve *orders.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, orders.StepValidate, orders.StepOf(err))
			assert.Equal(t, 5, store.Stock(7))
			assert.Zero(t, store.OrderCount())
		})
	}
}

func TestTotalMismatchIsDistinguishable(t *testing.T) {
	svc, _, _ := newService(ordertest.NewStore())

	_, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 2, "10")},
		Total:    total("25"),
	})

	assert.ErrorIs(t, err, orders.ErrTotalMismatch)
}

func TestEquivalentTotalIsAccepted(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	svc, _, _ := newService(store)

	_, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 2, "10.00")},
		Total:    total("20.0"),
	})

	assert.NoError(t, err)
}

func TestFloatSummedTotalIsAcceptedAtCentPrecision(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	store.AddProduct(8, 5)
	svc, _, _ := newService(store)
	lines := []orders.Line{line(7, 3, "12.5"), line(8, 2, "19.99")}

	p, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    lines,
		Total:    total("77.47999999999999"),
	})

	require.NoError(t, err)
	assert.Equal(t, "77.48", p.Total.String())
	assert.Equal(t, 2, store.Stock(7))

	_, err = svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    lines,
		Total:    total("77.47"),
	})
	assert.ErrorIs(t, err, orders.ErrTotalMismatch)
	assert.Equal(t, 1, store.OrderCount())
}

func TestStepFailureIsReported(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	boom := &postgres.ConnectivityError{Err: errors.New("connection reset")}
	store.Fail = func(op string, _ int64) error {
		if op == "order" {
			return boom
		}
		return nil
	}
	svc, _, m := newService(store)

	_, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})

	assert.Equal(t, orders.StepOrder, orders.StepOf(err))
	var ce *postgres.ConnectivityError
	assert.ErrorAs(t, err, &ce)
	assert.Empty(t, store.Customers())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersFailed.WithLabelValues("order")))
}

func TestCanceledContextFailsBeforeWriting(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	svc, _, m := newService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})

	assert.Equal(t, orders.StepBegin, orders.StepOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, store.Stock(7))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersFailed.WithLabelValues("transaction")))
	assert.Zero(t, testutil.ToFloat64(m.OrdersFailed.WithLabelValues("commit")))
}

func TestChangeStatus(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	svc, pub, _ := newService(store)
	ctx := context.Background()
	p, err := svc.PlaceOrder(ctx, orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})
	require.NoError(t, err)

	st, err := svc.ChangeStatus(ctx, p.OrderID, " Enviado ")

	require.NoError(t, err)
	assert.Equal(t, orders.Status("Enviado"), st)
	o, _ := store.Order(p.OrderID)
	assert.Equal(t, orders.Status("Enviado"), o.Status)

	sent := pub.Sent()
	require.Len(t, sent, 2)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(sent[1].Value, &env))
	assert.Equal(t, orders.EventOrderStatusChanged, env.EventType)
	assert.Equal(t, "x-event-type", sent[1].Headers[0].Key)
}

func TestChangeStatusErrors(t *testing.T) {
	svc, pub, _ := newService(ordertest.NewStore())
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, 1, "")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	_, err = svc.ChangeStatus(ctx, 404, "Enviado")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
	assert.Empty(t, pub.Sent())
}

func TestNilPublisherAndMetrics(t *testing.T) {
	store := ordertest.NewStore()
	store.AddProduct(7, 5)
	svc := &orders.Service{UoW: store}

	_, err := svc.PlaceOrder(context.Background(), orders.Submission{
		Customer: orders.Customer{Phone: "555-1"},
		Lines:    []orders.Line{line(7, 1, "10")},
	})

	assert.NoError(t, err)
}
