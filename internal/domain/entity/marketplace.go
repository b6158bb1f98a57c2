package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketplaceType plataforma externa.
type MarketplaceType string

const (
	MarketplaceWildberries    MarketplaceType = "wildberries"
	MarketplaceOzon           MarketplaceType = "ozon"
	MarketplaceYandexMarket   MarketplaceType = "yandex_market"
	MarketplaceAliExpress     MarketplaceType = "aliexpress"
	MarketplaceSberMegaMarket MarketplaceType = "sber_mega_market"
	MarketplaceOther          MarketplaceType = "other"
)

// Marketplace integración de la empresa con una plataforma externa.
type Marketplace struct {
	ID            string
	CompanyID     string
	Name          string
	Type          MarketplaceType
	APIURL        string
	APIKey        string
	IsFBSEnabled  bool
	IsConnected   bool
	LastSync      *time.Time
	ProductsCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductMarketplace identidad externa de un producto en un marketplace.
// Único por (producto, marketplace) y por (marketplace, external_id).
type ProductMarketplace struct {
	ID              string
	ProductID       string
	MarketplaceID   string
	ExternalID      string
	ExternalBarcode string
	ExternalArticle string
	Price           decimal.Decimal
	IsActive        bool
	LastSync        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
