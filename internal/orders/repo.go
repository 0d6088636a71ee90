package orders

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

const summaryColumns = `
	p.id_pedido, p.id_cliente, p.total, p.estado, COALESCE(p.tipo_entrega, ''),
	COALESCE(p.notas, ''), p.fecha_pedido, COALESCE(c.nombre, ''), c.telefono, COALESCE(c.direccion, '')`

// Repo is the read side of orders plus status changes.
type Repo struct{ DB postgres.Querier }

func (r *Repo) List(ctx context.Context) ([]OrderSummary, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+summaryColumns+`
		FROM pedidos p
		JOIN clientes c ON p.id_cliente = c.id_cliente
		ORDER BY p.fecha_pedido DESC, p.id_pedido DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderSummary{}
	for rows.Next() {
		var o OrderSummary
		if err := scanSummary(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (OrderDetail, error) {
	var d OrderDetail
	row := r.DB.QueryRow(ctx, `SELECT `+summaryColumns+`,
		COALESCE(c.email, ''), COALESCE(c.colonia, ''), COALESCE(c.ciudad, '')
		FROM pedidos p
		JOIN clientes c ON p.id_cliente = c.id_cliente
		WHERE p.id_pedido = $1`, id)
	if err := scanSummary(row, &d.Order.OrderSummary, &d.Order.Email, &d.Order.Colonia, &d.Order.City); err != nil {
		return OrderDetail{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT d.id_detalle, d.id_pedido, d.id_producto, d.cantidad, d.precio_unitario, d.subtotal,
		       pr.nombre, COALESCE(pr.imagen_url, '')
		FROM detalle_pedidos d
		JOIN productos pr ON d.id_producto = pr.id_producto
		WHERE d.id_pedido = $1
		ORDER BY d.id_detalle`, id)
	if err != nil {
		return OrderDetail{}, err
	}
	defer rows.Close()

	d.Lines = []OrderLine{}
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal,
			&l.ProductName, &l.ImageURL); err != nil {
			return OrderDetail{}, err
		}
		d.Lines = append(d.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return OrderDetail{}, err
	}
	return d, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, st Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE pedidos SET estado = $1 WHERE id_pedido = $2`, string(st), id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return postgres.ErrNotFound
	}
	return nil
}

func scanSummary(row pgx.Row, o *OrderSummary, extra ...any) error {
	var status string
	dest := append([]any{
		&o.ID, &o.CustomerID, &o.Total, &status, &o.DeliveryType,
		&o.Notes, &o.CreatedAt, &o.CustomerName, &o.Phone, &o.Address,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	o.Status = Status(status)
	return nil
}
