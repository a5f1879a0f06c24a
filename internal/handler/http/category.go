package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
)

// CategoryHandler handles HTTP requests for category endpoints.
type CategoryHandler struct {
	service CategoryService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{service: svc, logger: logger}
}

// CreateCategoryRequest is the JSON body for creating a category.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=100"`
	Description string  `json:"description" validate:"max=1000"`
	ParentID    *string `json:"parent_id" validate:"omitempty,uuid"`
}

// UpdateCategoryRequest is the JSON body for updating a category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

// ListCategories handles GET /api/v1/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// CategoryTree handles GET /api/v1/categories/tree
func (h *CategoryHandler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.CategoryTree(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tree)
}

// GetCategory handles GET /api/v1/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, category)
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	category, err := h.service.CreateCategory(r.Context(), &service.CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/v1/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), id, &service.UpdateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, category)
}
