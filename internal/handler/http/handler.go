// Package http exposes the marketplace use cases over a chi router.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/realtime"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/storage"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// CatalogService is the product use case surface the handlers need.
// *service.CatalogService implements it.
type CatalogService interface {
	CreateProduct(ctx context.Context, input *service.CreateProductInput, mainImage *storage.File, additionalImages []*storage.File) (*service.ProductResponse, error)
	UpdateProduct(ctx context.Context, id string, input *service.UpdateProductInput, images service.UpdateProductImages) (*service.ProductResponse, error)
	DeleteProduct(ctx context.Context, id string) (*service.ProductResponse, error)
	GetProduct(ctx context.Context, id string) (*service.ProductResponse, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter, page pagination.Params, sort []domain.SortKey) (*service.ListProductsResult, error)
	ListStoreProducts(ctx context.Context, storeID string, page pagination.Params, sort []domain.SortKey) (*pagination.Envelope[*service.ProductResponse], error)
}

// CategoryService is implemented by *service.CategoryService.
type CategoryService interface {
	CreateCategory(ctx context.Context, input *service.CreateCategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, input *service.UpdateCategoryInput) (*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CategoryTree(ctx context.Context) ([]*domain.Category, error)
}

// StoreService is implemented by *service.StoreService.
type StoreService interface {
	OpenStore(ctx context.Context, userID, storeName string, logo *storage.File) (*domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	ListUserStores(ctx context.Context, userID string) ([]domain.Store, error)
	ChangeStoreStatus(ctx context.Context, id, status string) (*domain.Store, error)
	UpdateStoreLogo(ctx context.Context, id, userID string, logo *storage.File) (*domain.Store, error)
}

// ReviewService is implemented by *service.ReviewService.
type ReviewService interface {
	CreateReview(ctx context.Context, input *service.CreateReviewInput) (*domain.Review, error)
	ListReviews(ctx context.Context, productID string, page pagination.Params) (*service.ReviewList, error)
	DeleteReview(ctx context.Context, id, userID string, isAdmin bool) error
}

// ChatService is implemented by *service.ChatService.
type ChatService interface {
	StartConversation(ctx context.Context, initiatorID, recipientID string, productID *string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error)
	ListConversations(ctx context.Context, userID string, page pagination.Params) (*pagination.Envelope[service.ConversationSummary], error)
	ListMessages(ctx context.Context, conversationID, userID string, page pagination.Params) (*pagination.Envelope[domain.Message], error)
	MarkRead(ctx context.Context, conversationID, userID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationStream opens a live notification feed for a user.
// *realtime.Notifier implements it.
type NotificationStream interface {
	Subscribe(ctx context.Context, userID string) (*realtime.Subscription, error)
}

const maxJSONBody = 1 << 20

// decodeAndValidate limits, decodes and validates a JSON request body. It
// writes the error response itself and reports whether dst is usable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// pathID returns the {id} URL parameter. Every resource is keyed by a UUID,
// so anything else is rejected with 400 before a lookup happens.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, id); !ok {
		return "", false
	}
	return id, true
}

func writeInvalid(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: message},
	})
}

func writeParamError(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: message},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: message},
	})
}
