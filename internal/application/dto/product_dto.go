package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	Name             string          `json:"name" validate:"required,min=1,max=200"`
	Article          string          `json:"article" validate:"required,min=1,max=100"`
	Barcode          string          `json:"barcode"`
	Brand            string          `json:"brand"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	Weight           decimal.Decimal `json:"weight"` // gramos
	Length           decimal.Decimal `json:"length"`
	Width            decimal.Decimal `json:"width"`
	Height           decimal.Decimal `json:"height"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	RecommendedPrice decimal.Decimal `json:"recommended_price"`
}

// UpdateProductRequest entrada para actualizar un producto (el artículo no cambia).
type UpdateProductRequest struct {
	Name             *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Barcode          *string          `json:"barcode"`
	Brand            *string          `json:"brand"`
	Category         *string          `json:"category"`
	Description      *string          `json:"description"`
	Weight           *decimal.Decimal `json:"weight"`
	PurchasePrice    *decimal.Decimal `json:"purchase_price"`
	RecommendedPrice *decimal.Decimal `json:"recommended_price"`
	IsActive         *bool            `json:"is_active"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	Name             string          `json:"name"`
	Article          string          `json:"article"`
	Barcode          string          `json:"barcode"`
	Brand            string          `json:"brand"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	Weight           decimal.Decimal `json:"weight"`
	Length           decimal.Decimal `json:"length"`
	Width            decimal.Decimal `json:"width"`
	Height           decimal.Decimal `json:"height"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	RecommendedPrice decimal.Decimal `json:"recommended_price"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
