package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const categoryColumns = `id, name, slug, description, parent_id, level, is_active, created_at, updated_at`

// CategoryRepository implements category persistence using PostgreSQL.
type CategoryRepository struct {
	db database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(db database.DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) (err error) {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "categories.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.Level, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID retrieves a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (c *domain.Category, err error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "categories.get", query)
	defer func() { end(err) }()

	c = &domain.Category{}
	err = r.db.QueryRow(ctx, query, id).Scan(categoryDest(c)...)
	if isMissingRow(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

// List returns categories ordered by level then name.
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) (categories []domain.Category, err error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY level, name`

	ctx, end := database.TraceQuery(ctx, "categories.list", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories = []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(categoryDest(&c)...); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// Update writes the mutable category fields.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) (err error) {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, is_active = $4, updated_at = $5
		WHERE id = $6`

	ctx, end := database.TraceQuery(ctx, "categories.update", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, c.Name, c.Slug, c.Description, c.IsActive, c.UpdatedAt, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func categoryDest(c *domain.Category) []any {
	return []any{
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.Level, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	}
}
