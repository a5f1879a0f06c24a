package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ReviewService implements the business logic for product reviews.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	events   EventPublisher
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	events EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		events:   events,
		logger:   logger,
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID string
	UserID    string
	Rating    int
	Title     string
	Body      string
}

// ReviewList is a page of reviews with the product's rating summary.
type ReviewList struct {
	Reviews    []domain.Review      `json:"reviews"`
	Summary    domain.ReviewSummary `json:"summary"`
	Pagination pagination.Meta      `json:"pagination"`
}

// CreateReview validates and stores a review for an active product.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.InvalidInput("rating must be between 1 and 5")
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("product not found")
		}
		return nil, fmt.Errorf("get product for review: %w", err)
	}
	if product.Status != domain.ProductStatusActive {
		return nil, apperrors.InvalidInput("only active products can be reviewed")
	}
	if product.SellerID == input.UserID {
		return nil, apperrors.Forbidden("sellers cannot review their own products")
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.NewString(),
		ProductID: input.ProductID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Title:     strings.TrimSpace(input.Title),
		Body:      strings.TrimSpace(input.Body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.events.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return review, nil
}

// ListReviews returns a page of a product's reviews with its rating summary.
func (s *ReviewService) ListReviews(ctx context.Context, productID string, page pagination.Params) (*ReviewList, error) {
	page = page.Normalize()

	reviews, total, err := s.reviews.ListByProduct(ctx, productID, page)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("review summary: %w", err)
	}

	return &ReviewList{
		Reviews:    reviews,
		Summary:    *summary,
		Pagination: pagination.NewMeta(total, page),
	}, nil
}

// DeleteReview removes a review. Only its author or an admin may do so.
func (s *ReviewService) DeleteReview(ctx context.Context, id, userID string, isAdmin bool) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("review", id)
		}
		return fmt.Errorf("get review: %w", err)
	}
	if review.UserID != userID && !isAdmin {
		return apperrors.Forbidden("you can only delete your own reviews")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if err := s.events.PublishReviewDeleted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
