package catalog

import "github.com/shopspring/decimal"

// Product JSON names follow the storefront client's column names.
type Product struct {
	ID           int64               `json:"ID_Producto"`
	Name         string              `json:"Nombre"`
	Description  string              `json:"Descripcion"`
	Price        decimal.Decimal     `json:"Precio"`
	CategoryID   *int64              `json:"ID_Categoria"`
	CategoryName string              `json:"Categoria"`
	Stock        int                 `json:"Stock"`
	Presentation string              `json:"Tipo_Presentacion"`
	Volume       string              `json:"Volumen"`
	AlcoholGrade decimal.NullDecimal `json:"Grados_Alcohol"`
	Brand        string              `json:"Marca"`
	ImageURL     string              `json:"Imagen_URL"`
	Active       bool                `json:"Activo"`
}

// ProductInput is the admin-editable part of a product. Update overwrites
// every field.
type ProductInput struct {
	Name         string              `json:"Nombre"`
	Description  string              `json:"Descripcion"`
	Price        decimal.Decimal     `json:"Precio"`
	CategoryID   *int64              `json:"ID_Categoria"`
	Stock        int                 `json:"Stock"`
	Presentation string              `json:"Tipo_Presentacion"`
	Volume       string              `json:"Volumen"`
	AlcoholGrade decimal.NullDecimal `json:"Grados_Alcohol"`
	Brand        string              `json:"Marca"`
	ImageURL     string              `json:"Imagen_URL"`
}

type Category struct {
	ID     int64  `json:"ID_Categoria"`
	Name   string `json:"Nombre"`
	Active bool   `json:"Activo"`
}

type StockLevel struct {
	ProductID int64
	Name      string
	Stock     int
}
