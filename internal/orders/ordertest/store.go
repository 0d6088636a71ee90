// Package ordertest provides an in-memory orders.UnitOfWork with the same
// commit-or-discard behavior as the postgres store.
package ordertest

import (
	"context"
	"fmt"
	"maps"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

type Order struct {
	ID int64
	orders.NewOrder
}

type state struct {
	stock     map[int64]int
	customers map[int64]orders.Customer
	byPhone   map[string]int64
	orders    map[int64]Order
	lines     []orders.OrderLine
	nextID    int64
}

func (s state) clone() state {
	c := s
	c.stock = maps.Clone(s.stock)
	c.customers = maps.Clone(s.customers)
	c.byPhone = maps.Clone(s.byPhone)
	c.orders = maps.Clone(s.orders)
	c.lines = append([]orders.OrderLine(nil), s.lines...)
	return c
}

// Store serializes units of work, which gives the same outcome as the
// conditional stock decrement under read committed.
type Store struct {
	mu sync.Mutex
	st state

	// Fail, when set, is consulted before every write; a non-nil error
	// aborts the unit of work.
	Fail func(op string, productID int64) error
}

func NewStore() *Store {
	return &Store{st: state{
		stock:     map[int64]int{},
		customers: map[int64]orders.Customer{},
		byPhone:   map[string]int64{},
		orders:    map[int64]Order{},
	}}
}

// AddProduct seeds a product with the given stock.
func (s *Store) AddProduct(id int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stock[id] = stock
}

func (s *Store) Do(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return &postgres.TxError{Op: "begin", Err: &postgres.ConnectivityError{Err: err}}
	}
	snapshot := s.st.clone()
	if err := fn(&memTx{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, st orders.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return postgres.ErrNotFound
	}
	o.Status = st
	s.st.orders[id] = o
	return nil
}

func (s *Store) Stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.stock[id]
}

func (s *Store) Customers() []orders.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		out = append(out, c)
	}
	return out
}

func (s *Store) CustomerByPhone(phone string) (orders.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.st.byPhone[phone]
	if !ok {
		return orders.Customer{}, false
	}
	return s.st.customers[id], true
}

func (s *Store) Order(id int64) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	return o, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) Lines() []orders.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.OrderLine(nil), s.st.lines...)
}

type memTx struct{ s *Store }

func (t *memTx) fail(op string, productID int64) error {
	if t.s.Fail == nil {
		return nil
	}
	return t.s.Fail(op, productID)
}

func (t *memTx) id() int64 {
	t.s.st.nextID++
	return t.s.st.nextID
}

func (t *memTx) UpsertCustomer(_ context.Context, c orders.Customer) (int64, error) {
	if err := t.fail("customer", 0); err != nil {
		return 0, err
	}
	id, ok := t.s.st.byPhone[c.Phone]
	if !ok {
		id = t.id()
		t.s.st.byPhone[c.Phone] = id
	}
	c.ID = id
	t.s.st.customers[id] = c
	return id, nil
}

func (t *memTx) InsertOrder(_ context.Context, o orders.NewOrder) (int64, error) {
	if err := t.fail("order", 0); err != nil {
		return 0, err
	}
	if _, ok := t.s.st.customers[o.CustomerID]; !ok {
		return 0, &postgres.StatementError{
			Code:       "23503",
			Constraint: "pedidos_id_cliente_fkey",
			Err:        fmt.Errorf("customer %d does not exist", o.CustomerID),
		}
	}
	id := t.id()
	t.s.st.orders[id] = Order{ID: id, NewOrder: o}
	return id, nil
}

func (t *memTx) InsertLine(_ context.Context, orderID int64, l orders.Line) (int64, error) {
	if err := t.fail("line", l.ProductID); err != nil {
		return 0, err
	}
	if _, ok := t.s.st.stock[l.ProductID]; !ok {
		return 0, fmt.Errorf("product %d: %w", l.ProductID, orders.ErrProductNotFound)
	}
	id := t.id()
	t.s.st.lines = append(t.s.st.lines, orders.OrderLine{
		ID:        id,
		OrderID:   orderID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		Subtotal:  l.Subtotal(),
	})
	return id, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) error {
	if err := t.fail("stock", productID); err != nil {
		return err
	}
	stock, ok := t.s.st.stock[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, orders.ErrProductNotFound)
	}
	if stock < qty {
		return &orders.StockError{ProductID: productID, Requested: qty, Available: stock}
	}
	t.s.st.stock[productID] = stock - qty
	return nil
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []kafkago.Message
}

func (p *Publisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (p *Publisher) Sent() []kafkago.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafkago.Message(nil), p.Messages...)
}
