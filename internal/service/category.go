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
	"github.com/utafrali/marketplace/pkg/slug"
)

// CategoryService manages the category hierarchy.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger}
}

// CreateCategoryInput holds the parameters for creating a category.
type CreateCategoryInput struct {
	Name        string
	Description string
	ParentID    *string
}

// UpdateCategoryInput holds the optional category fields to change.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// CreateCategory creates a root category or, with ParentID, a subcategory
// one level below an active parent.
func (s *CategoryService) CreateCategory(ctx context.Context, input *CreateCategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}
	categorySlug := slug.Generate(name)
	if categorySlug == "" {
		return nil, apperrors.InvalidInput("category name must contain letters or digits")
	}

	level := 0
	if input.ParentID != nil && *input.ParentID != "" {
		parent, err := s.repo.GetByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFoundMessage("parent category not found")
			}
			return nil, fmt.Errorf("get parent category: %w", err)
		}
		if !parent.IsActive {
			return nil, apperrors.InvalidInput("parent category is inactive")
		}
		level = parent.Level + 1
	} else {
		input.ParentID = nil
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        categorySlug,
		Description: input.Description,
		ParentID:    input.ParentID,
		Level:       level,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)
	return category, nil
}

// UpdateCategory changes name, description or active flag. Renaming
// regenerates the slug.
func (s *CategoryService) UpdateCategory(ctx context.Context, id string, input *UpdateCategoryInput) (*domain.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("category name must not be empty")
		}
		category.Name = name
		category.Slug = slug.Generate(name)
	}
	if input.Description != nil {
		category.Description = *input.Description
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return category, nil
}

// GetCategory returns a category by ID.
func (s *CategoryService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

// ListCategories returns every active category as a flat list.
func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CategoryTree returns the active categories nested under their parents.
func (s *CategoryService) CategoryTree(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return domain.BuildCategoryTree(categories), nil
}
