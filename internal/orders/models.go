package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is keyed by phone for upserts; ID is the surrogate key.
type Customer struct {
	ID         int64  `json:"-"`
	Phone      string `json:"telefono"`
	Name       string `json:"nombre"`
	Email      string `json:"email"`
	Address    string `json:"direccion"`
	Colonia    string `json:"colonia"`
	City       string `json:"ciudad"`
	PostalCode string `json:"codigo_postal"`
}

// Line is one submitted order line. UnitPrice is captured as submitted and
// never re-read from the product.
type Line struct {
	ProductID int64           `json:"id"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Submission is what the storefront posts to place an order.
type Submission struct {
	Customer     Customer            `json:"cliente"`
	Lines        []Line              `json:"productos"`
	Total        decimal.NullDecimal `json:"total"`
	Notes        string              `json:"notas"`
	DeliveryType string              `json:"tipo_entrega"`
}

// NewOrder is the header row written by the placement workflow.
type NewOrder struct {
	CustomerID   int64
	Total        decimal.Decimal
	Status       Status
	DeliveryType string
	Notes        string
}

type PlacedLine struct {
	ID int64
	Line
	Subtotal decimal.Decimal
}

// Placement is the outcome of a committed order placement.
type Placement struct {
	OrderID    int64
	CustomerID int64
	Total      decimal.Decimal
	Lines      []PlacedLine
}

type OrderSummary struct {
	ID           int64           `json:"ID_Pedido"`
	CustomerID   int64           `json:"ID_Cliente"`
	Total        decimal.Decimal `json:"Total"`
	Status       Status          `json:"Estado"`
	DeliveryType string          `json:"Tipo_Entrega"`
	Notes        string          `json:"Notas"`
	CreatedAt    time.Time       `json:"Fecha_Pedido"`
	CustomerName string          `json:"Cliente"`
	Phone        string          `json:"Telefono"`
	Address      string          `json:"Direccion"`
}

type OrderHeader struct {
	OrderSummary
	Email   string `json:"Email"`
	Colonia string `json:"Colonia"`
	City    string `json:"Ciudad"`
}

type OrderLine struct {
	ID          int64           `json:"ID_Detalle"`
	OrderID     int64           `json:"ID_Pedido"`
	ProductID   int64           `json:"ID_Producto"`
	Quantity    int             `json:"Cantidad"`
	UnitPrice   decimal.Decimal `json:"Precio_Unitario"`
	Subtotal    decimal.Decimal `json:"Subtotal"`
	ProductName string          `json:"Producto"`
	ImageURL    string          `json:"Imagen_URL"`
}

type OrderDetail struct {
	Order OrderHeader `json:"pedido"`
	Lines []OrderLine `json:"detalle"`
}
