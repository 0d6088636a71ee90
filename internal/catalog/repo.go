package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

const productColumns = `
	p.id_producto, p.nombre, COALESCE(p.descripcion, ''), p.precio, p.id_categoria,
	COALESCE(c.nombre, ''), p.stock, COALESCE(p.tipo_presentacion, ''), COALESCE(p.volumen, ''),
	p.grados_alcohol, COALESCE(p.marca, ''), COALESCE(p.imagen_url, ''), p.activo
	FROM productos p
	LEFT JOIN categorias c ON p.id_categoria = c.id_categoria`

// Repo holds the product and category statements. Every method is a single
// statement; none of them crosses entities beyond the category name join.
type Repo struct{ DB postgres.Querier }

func (r *Repo) ListActive(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+`
		WHERE p.activo = TRUE
		ORDER BY p.id_producto DESC`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *Repo) ListByCategory(ctx context.Context, categoryID int64) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+`
		WHERE p.id_categoria = $1 AND p.activo = TRUE
		ORDER BY p.nombre`, categoryID)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// GetByID ignores the active flag so deactivated products stay reachable
// from historical orders.
func (r *Repo) GetByID(ctx context.Context, id int64) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+`
		WHERE p.id_producto = $1`, id)
	return scanProduct(row)
}

func (r *Repo) Create(ctx context.Context, in ProductInput) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO productos (nombre, descripcion, precio, id_categoria, stock,
		                       tipo_presentacion, volumen, grados_alcohol, marca, imagen_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id_producto`,
		in.Name, in.Description, in.Price, in.CategoryID, in.Stock,
		in.Presentation, in.Volume, in.AlcoholGrade, in.Brand, in.ImageURL,
	).Scan(&id)
	return id, err
}

func (r *Repo) Update(ctx context.Context, id int64, in ProductInput) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE productos
		SET nombre = $1, descripcion = $2, precio = $3, id_categoria = $4, stock = $5,
		    tipo_presentacion = $6, volumen = $7, grados_alcohol = $8, marca = $9, imagen_url = $10
		WHERE id_producto = $11`,
		in.Name, in.Description, in.Price, in.CategoryID, in.Stock,
		in.Presentation, in.Volume, in.AlcoholGrade, in.Brand, in.ImageURL, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return postgres.ErrNotFound
	}
	return nil
}

// Deactivate is the only delete: the row stays for order history.
func (r *Repo) Deactivate(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `UPDATE productos SET activo = FALSE WHERE id_producto = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return postgres.ErrNotFound
	}
	return nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id_categoria, nombre, activo
		FROM categorias
		WHERE activo = TRUE
		ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StockLevels returns the current stock of the given products; unknown ids
// are skipped.
func (r *Repo) StockLevels(ctx context.Context, ids []int64) ([]StockLevel, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id_producto, nombre, stock
		FROM productos
		WHERE id_producto = ANY($1)
		ORDER BY id_producto`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockLevel
	for rows.Next() {
		var s StockLevel
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Stock); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID,
		&p.CategoryName, &p.Stock, &p.Presentation, &p.Volume,
		&p.AlcoholGrade, &p.Brand, &p.ImageURL, &p.Active,
	)
	return p, err
}
