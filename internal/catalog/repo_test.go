package catalog

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

var productCols = []string{
	"id_producto", "nombre", "descripcion", "precio", "id_categoria", "categoria", "stock",
	"tipo_presentacion", "volumen", "grados_alcohol", "marca", "imagen_url", "activo",
}

func newRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &Repo{DB: postgres.New(mock, postgres.TxConfig{}, logging.Discard())}, mock
}

func productRow(rows *pgxmock.Rows, id int64, name string, stock int, active bool) *pgxmock.Rows {
	cat := int64(2)
	return rows.AddRow(id, name, "", decimal.RequireFromString("189.50"), &cat, "Cervezas", stock,
		"Six", "355 ml", decimal.NullDecimal{}, "Modelo", "", active)
}

func TestListActive(t *testing.T) {
	repo, mock := newRepo(t)
	rows := pgxmock.NewRows(productCols)
	productRow(rows, 8, "Modelo Especial", 12, true)
	productRow(rows, 7, "Corona", 5, true)

	mock.ExpectQuery(`(?s)FROM productos p\s+LEFT JOIN categorias c.*WHERE p.activo = TRUE\s+ORDER BY p.id_producto DESC`).
		WillReturnRows(rows)

	got, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(8), got[0].ID)
	assert.Equal(t, "Cervezas", got[0].CategoryName)
	assert.True(t, got[1].Price.Equal(decimal.RequireFromString("189.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveEmptyIsNotNil(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`FROM productos p`).WillReturnRows(pgxmock.NewRows(productCols))

	got, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByCategory(t *testing.T) {
	repo, mock := newRepo(t)
	rows := pgxmock.NewRows(productCols)
	productRow(rows, 7, "Corona", 5, true)

	mock.ExpectQuery(`WHERE p.id_categoria = \$1 AND p.activo = TRUE\s+ORDER BY p.nombre`).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	got, err := repo.ListByCategory(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Corona", got[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDReturnsInactiveProducts(t *testing.T) {
	repo, mock := newRepo(t)
	rows := pgxmock.NewRows(productCols)
	productRow(rows, 7, "Corona", 0, false)

	mock.ExpectQuery(`WHERE p.id_producto = \$1`).WithArgs(int64(7)).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "Corona", got.Name)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`WHERE p.id_producto = \$1`).WithArgs(int64(99)).WillReturnRows(pgxmock.NewRows(productCols))

	_, err := repo.GetByID(context.Background(), 99)

	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestCreate(t *testing.T) {
	repo, mock := newRepo(t)
	cat := int64(2)
	in := ProductInput{Name: "Corona", Price: decimal.NewFromInt(180), CategoryID: &cat, Stock: 24}

	mock.ExpectQuery(`(?s)INSERT INTO productos .*RETURNING id_producto`).
		WithArgs("Corona", "", pgxmock.AnyArg(), &cat, 24, "", "", pgxmock.AnyArg(), "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id_producto"}).AddRow(int64(31)))

	id, err := repo.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, int64(31), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepo(t)
	in := ProductInput{Name: "Corona Extra", Price: decimal.NewFromInt(190), Stock: 10}

	mock.ExpectExec(`UPDATE productos\s+SET nombre = \$1`).
		WithArgs("Corona Extra", "", pgxmock.AnyArg(), pgxmock.AnyArg(), 10, "", "", pgxmock.AnyArg(), "", "", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), 7, in))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissing(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(`UPDATE productos`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), 404, ProductInput{Name: "x"})

	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestDeactivate(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(`UPDATE productos SET activo = FALSE WHERE id_producto = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE productos SET activo = FALSE`).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.Deactivate(context.Background(), 7))
	assert.ErrorIs(t, repo.Deactivate(context.Background(), 8), postgres.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCategories(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`FROM categorias\s+WHERE activo = TRUE\s+ORDER BY nombre`).
		WillReturnRows(pgxmock.NewRows([]string{"id_categoria", "nombre", "activo"}).
			AddRow(int64(2), "Cervezas", true).
			AddRow(int64(1), "Vinos", true))

	got, err := repo.ListCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: 2, Name: "Cervezas", Active: true}, {ID: 1, Name: "Vinos", Active: true}}, got)
}

func TestStockLevels(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`WHERE id_producto = ANY\(\$1\)`).
		WithArgs([]int64{7, 8}).
		WillReturnRows(pgxmock.NewRows([]string{"id_producto", "nombre", "stock"}).
			AddRow(int64(7), "Corona", 3).
			AddRow(int64(8), "Modelo", 40))

	got, err := repo.StockLevels(context.Background(), []int64{7, 8})

	require.NoError(t, err)
	assert.Equal(t, []StockLevel{{ProductID: 7, Name: "Corona", Stock: 3}, {ProductID: 8, Name: "Modelo", Stock: 40}}, got)
}
