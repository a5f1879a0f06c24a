package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const reviewColumns = `id, product_id, user_id, rating, title, body, created_at, updated_at`

// ReviewRepository implements review persistence using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// Create inserts a review. One review per user and product.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (err error) {
	query := `INSERT INTO reviews (` + reviewColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, end := database.TraceQuery(ctx, "reviews.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Body, rv.CreatedAt, rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "product_id", rv.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (rv *domain.Review, err error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "reviews.get", query)
	defer func() { end(err) }()

	rv = &domain.Review{}
	err = r.db.QueryRow(ctx, query, id).Scan(reviewDest(rv)...)
	if isMissingRow(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review %s: %w", id, err)
	}
	return rv, nil
}

// ListByProduct returns paginated reviews for a product, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, page pagination.Params) (reviews []domain.Review, total int, err error) {
	page = page.Normalize()
	query := `
		SELECT ` + reviewColumns + `, count(*) OVER() AS total_count
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "reviews.list_by_product", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, productID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews = []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(append(reviewDest(&rv), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, total, nil
}

// Summary returns the average rating, rounded to one decimal, and the review count.
func (r *ReviewRepository) Summary(ctx context.Context, productID string) (summary *domain.ReviewSummary, err error) {
	query := `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews
		WHERE product_id = $1`

	ctx, end := database.TraceQuery(ctx, "reviews.summary", query)
	defer func() { end(err) }()

	summary = &domain.ReviewSummary{}
	if err = r.db.QueryRow(ctx, query, productID).Scan(&summary.AverageRating, &summary.TotalCount); err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}
	summary.AverageRating = math.Round(summary.AverageRating*10) / 10
	return summary, nil
}

// Delete removes a review by ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "reviews.delete", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func reviewDest(rv *domain.Review) []any {
	return []any{&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Title, &rv.Body, &rv.CreatedAt, &rv.UpdatedAt}
}
