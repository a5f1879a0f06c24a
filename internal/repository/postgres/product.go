package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const productColumns = `id, name, description, price, stock, category_id, category_name,
	sub_category_id, sub_category_name, seller_id, store_id, main_image_url, image_urls,
	status, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	ctx, end := database.TraceQuery(ctx, "products.create", query)
	defer func() { end(err) }()

	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.CategoryID,
		p.CategoryName,
		p.SubCategoryID,
		p.SubCategoryName,
		p.SellerID,
		p.StoreID,
		p.MainImageURL,
		images,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.InvalidInput("product references a missing store or category")
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.get", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.db.QueryRow(ctx, query, id))
	if isMissingRow(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// List returns one page of products matching filter with the total count.
func (r *ProductRepository) List(
	ctx context.Context,
	filter repository.ProductFilter,
	page pagination.Params,
	sort []domain.SortKey,
) (products []domain.Product, total int, err error) {
	var where whereBuilder
	if filter.StoreID != nil {
		where.eq("store_id", *filter.StoreID)
	}
	if filter.CategoryID != nil {
		where.eq("category_id", *filter.CategoryID)
	}
	if filter.SubCategoryID != nil {
		where.eq("sub_category_id", *filter.SubCategoryID)
	}
	if filter.Status != nil {
		where.eq("status", *filter.Status)
	}

	page = page.Normalize()
	n := where.next()
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, where.clause(), orderBy(sort), n, n+1,
	)
	args := append(where.args, page.Limit, page.Offset())

	ctx, end := database.TraceQuery(ctx, "products.list", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(append(productDest(&p), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, total, nil
}

// orderBy renders sort keys over the whitelisted columns. Unknown fields are
// dropped and id is appended so paging is stable across equal keys.
func orderBy(sort []domain.SortKey) string {
	if len(sort) == 0 {
		sort = domain.DefaultProductSort()
	}

	parts := make([]string, 0, len(sort)+1)
	seen := make(map[string]bool, len(sort))
	for _, k := range sort {
		col, ok := domain.SortColumn(k.Field)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		dir := "ASC"
		if k.Direction < 0 {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		parts = append(parts, "created_at DESC")
	}
	return strings.Join(append(parts, "id ASC"), ", ")
}

// Update writes the columns set in patch and returns the updated row.
func (r *ProductRepository) Update(ctx context.Context, id string, patch *domain.ProductPatch) (p *domain.Product, err error) {
	if patch == nil || patch.IsEmpty() {
		return nil, apperrors.InvalidInput("at least one field must be updated")
	}

	var set setBuilder
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Price != nil {
		set.add("price", *patch.Price)
	}
	if patch.Stock != nil {
		set.add("stock", *patch.Stock)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.CategoryID != nil {
		set.add("category_id", *patch.CategoryID)
	}
	if patch.CategoryName != nil {
		set.add("category_name", *patch.CategoryName)
	}
	switch {
	case patch.SubCategoryID != nil:
		set.add("sub_category_id", *patch.SubCategoryID)
		set.add("sub_category_name", patch.SubCategoryName)
	case patch.ClearSubCategory:
		set.add("sub_category_id", nil)
		set.add("sub_category_name", nil)
	}
	if patch.MainImageURL != nil {
		set.add("main_image_url", *patch.MainImageURL)
	}
	if patch.ImageURLs != nil {
		images := *patch.ImageURLs
		if images == nil {
			images = []string{}
		}
		set.add("image_urls", images)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set.sets, ", "), len(set.args)+1, productColumns)

	ctx, end := database.TraceQuery(ctx, "products.update", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.db.QueryRow(ctx, query, append(set.args, id)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.InvalidInput("product references a missing category")
		}
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// Delete removes a product by ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.delete", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func productDest(p *domain.Product) []any {
	return []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.CategoryID,
		&p.CategoryName,
		&p.SubCategoryID,
		&p.SubCategoryName,
		&p.SellerID,
		&p.StoreID,
		&p.MainImageURL,
		&p.ImageURLs,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(productDest(&p)...); err != nil {
		return nil, err
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return &p, nil
}
