package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Title  string `json:"title" validate:"max=255"`
	Body   string `json:"body" validate:"max=5000"`
}

// ListReviews handles GET /api/v1/products/{id}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListReviews(r.Context(), productID, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// CreateReview handles POST /api/v1/products/{id}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	review, err := h.service.CreateReview(r.Context(), &service.CreateReviewInput{
		ProductID: productID,
		UserID:    middleware.UserIDFromContext(r.Context()),
		Rating:    req.Rating,
		Title:     req.Title,
		Body:      req.Body,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.service.DeleteReview(ctx, id, middleware.UserIDFromContext(ctx), middleware.IsAdmin(ctx)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
