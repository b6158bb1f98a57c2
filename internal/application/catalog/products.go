// Package catalog casos de uso de productos, bodegas y ubicaciones.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// MovementChecker consulta si el ledger referencia un producto.
type MovementChecker interface {
	ExistsForProduct(ctx context.Context, productID string) (bool, error)
}

// ProductUseCase casos de uso de productos.
type ProductUseCase struct {
	repo      repository.ProductRepository
	movements MovementChecker
	log       zerolog.Logger
	now       func() time.Time
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository, movements MovementChecker, log zerolog.Logger) *ProductUseCase {
	return &ProductUseCase{
		repo:      repo,
		movements: movements,
		log:       log.With().Str("component", "catalog").Logger(),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *ProductUseCase) WithClock(now func() time.Time) *ProductUseCase {
	uc.now = now
	return uc
}

// Create crea un producto. El artículo es único por empresa y el código de barras global.
func (uc *ProductUseCase) Create(ctx context.Context, actor domain.Actor, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if in.Name == "" || in.Article == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := nonNegative(in.Weight, in.Length, in.Width, in.Height, in.PurchasePrice, in.RecommendedPrice); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByCompanyAndArticle(ctx, actor.CompanyID, in.Article)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("artículo %s: %w", in.Article, domain.ErrDuplicate)
	}
	if err := uc.checkBarcode(ctx, in.Barcode, ""); err != nil {
		return nil, err
	}
	now := uc.now()
	p := &entity.Product{
		ID:               uuid.New().String(),
		CompanyID:        actor.CompanyID,
		Name:             in.Name,
		Article:          in.Article,
		Barcode:          in.Barcode,
		Brand:            in.Brand,
		Category:         in.Category,
		Description:      in.Description,
		Weight:           in.Weight,
		Length:           in.Length,
		Width:            in.Width,
		Height:           in.Height,
		PurchasePrice:    in.PurchasePrice,
		RecommendedPrice: in.RecommendedPrice,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// GetByID obtiene un producto de la empresa del actor.
func (uc *ProductUseCase) GetByID(ctx context.Context, actor domain.Actor, id string) (*dto.ProductResponse, error) {
	p, err := uc.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// AuthorizeProduct verifica que el producto exista, no esté eliminado y sea de la empresa del actor.
func (uc *ProductUseCase) AuthorizeProduct(ctx context.Context, actor domain.Actor, id string) error {
	_, err := uc.get(ctx, actor, id)
	return err
}

func (uc *ProductUseCase) get(ctx context.Context, actor domain.Actor, id string) (*entity.Product, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.IsDeleted || p.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Update actualiza los campos enviados.
func (uc *ProductUseCase) Update(ctx context.Context, actor domain.Actor, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := uc.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, domain.ErrInvalidInput
		}
		p.Name = *in.Name
	}
	if in.Barcode != nil && *in.Barcode != p.Barcode {
		if err := uc.checkBarcode(ctx, *in.Barcode, p.ID); err != nil {
			return nil, err
		}
		p.Barcode = *in.Barcode
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Weight != nil {
		if err := nonNegative(*in.Weight); err != nil {
			return nil, err
		}
		p.Weight = *in.Weight
	}
	if in.PurchasePrice != nil {
		if err := nonNegative(*in.PurchasePrice); err != nil {
			return nil, err
		}
		p.PurchasePrice = *in.PurchasePrice
	}
	if in.RecommendedPrice != nil {
		if err := nonNegative(*in.RecommendedPrice); err != nil {
			return nil, err
		}
		p.RecommendedPrice = *in.RecommendedPrice
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// List lista productos por empresa con paginación.
func (uc *ProductUseCase) List(ctx context.Context, actor domain.Actor, limit, offset int) (*dto.ProductListResponse, error) {
	list, err := uc.repo.ListByCompany(ctx, actor.CompanyID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toProductResponse(p))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset, Count: len(items)},
	}, nil
}

// Delete marca el producto como borrado. Con hard=true lo elimina físicamente,
// salvo que el ledger tenga movimientos del producto (ErrReferenced).
func (uc *ProductUseCase) Delete(ctx context.Context, actor domain.Actor, id string, hard bool) error {
	p, err := uc.get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !hard {
		p.IsDeleted = true
		p.IsActive = false
		p.UpdatedAt = uc.now()
		return uc.repo.Update(ctx, p)
	}
	used, err := uc.movements.ExistsForProduct(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("producto %s: %w", id, domain.ErrReferenced)
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.log.Info().Str("product", id).Msg("producto eliminado")
	return nil
}

func (uc *ProductUseCase) checkBarcode(ctx context.Context, barcode, selfID string) error {
	if barcode == "" {
		return nil
	}
	other, err := uc.repo.GetByBarcode(ctx, barcode)
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("código de barras %s: %w", barcode, domain.ErrDuplicate)
	}
	return nil
}

func nonNegative(values ...decimal.Decimal) error {
	for _, v := range values {
		if v.IsNegative() {
			return fmt.Errorf("%w: valor negativo %s", domain.ErrInvalidInput, v)
		}
	}
	return nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	if p == nil {
		return nil
	}
	return &dto.ProductResponse{
		ID:               p.ID,
		CompanyID:        p.CompanyID,
		Name:             p.Name,
		Article:          p.Article,
		Barcode:          p.Barcode,
		Brand:            p.Brand,
		Category:         p.Category,
		Description:      p.Description,
		Weight:           p.Weight,
		Length:           p.Length,
		Width:            p.Width,
		Height:           p.Height,
		PurchasePrice:    p.PurchasePrice,
		RecommendedPrice: p.RecommendedPrice,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
