package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto de la empresa. El artículo es único por empresa
// y el código de barras es único global. No se borra físicamente mientras el ledger lo referencie.
type Product struct {
	ID               string
	CompanyID        string
	Name             string
	Article          string
	Barcode          string
	Brand            string
	Category         string
	Description      string
	Weight           decimal.Decimal // gramos
	Length           decimal.Decimal // cm
	Width            decimal.Decimal
	Height           decimal.Decimal
	PurchasePrice    decimal.Decimal
	RecommendedPrice decimal.Decimal
	IsActive         bool
	IsDeleted        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WeightKg peso unitario en kilogramos.
func (p Product) WeightKg() decimal.Decimal {
	return p.Weight.Div(decimal.NewFromInt(1000))
}
