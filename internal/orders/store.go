package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// UnitOfWork runs fn inside one transaction. A nil return commits every
// write fn made through tx; any error discards all of them. fn may be run
// more than once when the transaction is retried.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of order placement.
type Tx interface {
	UpsertCustomer(ctx context.Context, c Customer) (int64, error)
	InsertOrder(ctx context.Context, o NewOrder) (int64, error)
	InsertLine(ctx context.Context, orderID int64, l Line) (int64, error)
	// DecrementStock fails with a *StockError when fewer than qty units are
	// left and with ErrProductNotFound when the product does not exist.
	DecrementStock(ctx context.Context, productID int64, qty int) error
}

const constraintLineProduct = "detalle_pedidos_id_producto_fkey"

// Store is the postgres UnitOfWork.
type Store struct{ DB *postgres.DB }

func (s *Store) Do(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.InTx(ctx, func(q postgres.Querier) error {
		return fn(&pgTx{q: q})
	})
}

type pgTx struct{ q postgres.Querier }

func (t *pgTx) UpsertCustomer(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO clientes (telefono, nombre, email, direccion, colonia, ciudad, codigo_postal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telefono) DO UPDATE
		SET nombre = EXCLUDED.nombre, email = EXCLUDED.email, direccion = EXCLUDED.direccion,
		    colonia = EXCLUDED.colonia, ciudad = EXCLUDED.ciudad, codigo_postal = EXCLUDED.codigo_postal
		RETURNING id_cliente`,
		c.Phone, c.Name, c.Email, c.Address, c.Colonia, c.City, c.PostalCode,
	).Scan(&id)
	return id, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o NewOrder) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO pedidos (id_cliente, total, estado, tipo_entrega, notas)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_pedido`,
		o.CustomerID, o.Total, string(o.Status), o.DeliveryType, o.Notes,
	).Scan(&id)
	return id, err
}

func (t *pgTx) InsertLine(ctx context.Context, orderID int64, l Line) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO detalle_pedidos (id_pedido, id_producto, cantidad, precio_unitario, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_detalle`,
		orderID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal(),
	).Scan(&id)
	if postgres.IsConstraint(err, constraintLineProduct) {
		return 0, fmt.Errorf("product %d: %w", l.ProductID, ErrProductNotFound)
	}
	return id, err
}

// DecrementStock is a single conditional update, so two transactions can
// never both take the last units of a product.
func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE productos SET stock = stock - $1
		WHERE id_producto = $2 AND stock >= $1`, qty, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var available int
	err = t.q.QueryRow(ctx, `SELECT stock FROM productos WHERE id_producto = $1`, productID).Scan(&available)
	if errors.Is(err, postgres.ErrNotFound) {
		return fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return err
	}
	return &StockError{ProductID: productID, Requested: qty, Available: available}
}
