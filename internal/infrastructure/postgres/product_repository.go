package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación de ProductRepository sobre PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, company_id, name, article, barcode, brand, category, description, weight, length,
	width, height, purchase_price, recommended_price, is_active, is_deleted, created_at, updated_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	var barcode *string
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Article, &barcode, &p.Brand, &p.Category, &p.Description,
		&p.Weight, &p.Length, &p.Width, &p.Height, &p.PurchasePrice, &p.RecommendedPrice,
		&p.IsActive, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Barcode = derefString(barcode)
	return &p, nil
}

// Create persiste un producto. Artículo o código de barras repetidos devuelven ErrDuplicate.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Name, p.Article, nullString(p.Barcode), p.Brand, p.Category, p.Description,
		p.Weight, p.Length, p.Width, p.Height, p.PurchasePrice, p.RecommendedPrice,
		p.IsActive, p.IsDeleted, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert product: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByCompanyAndArticle busca por artículo dentro de la empresa.
func (r *ProductRepo) GetByCompanyAndArticle(ctx context.Context, companyID, article string) (*entity.Product, error) {
	return r.getOne(ctx, `WHERE company_id = $1 AND article = $2`, companyID, article)
}

// GetByBarcode busca por código de barras (único global).
func (r *ProductRepo) GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	return r.getOne(ctx, `WHERE barcode = $1`, barcode)
}

func (r *ProductRepo) getOne(ctx context.Context, where string, args ...any) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Update actualiza los campos editables.
func (r *ProductRepo) Update(ctx context.Context, p *entity.Product) error {
	query := `
		UPDATE products SET name = $2, barcode = $3, brand = $4, category = $5, description = $6,
			weight = $7, length = $8, width = $9, height = $10, purchase_price = $11,
			recommended_price = $12, is_active = $13, is_deleted = $14, updated_at = $15
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		p.ID, p.Name, nullString(p.Barcode), p.Brand, p.Category, p.Description,
		p.Weight, p.Length, p.Width, p.Height, p.PurchasePrice,
		p.RecommendedPrice, p.IsActive, p.IsDeleted, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update product: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByCompany lista productos no borrados por artículo.
func (r *ProductRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE company_id = $1 AND NOT is_deleted
		ORDER BY article LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Delete borra físicamente. La FK desde stock_entries lo impide si el ledger lo referencia.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete product: %w", domain.ErrReferenced)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
