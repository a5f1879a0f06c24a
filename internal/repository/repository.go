package repository

import (
	"context"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// Lookups by ID return apperrors.ErrNotFound when the row does not exist.

// ProductFilter narrows a product listing. Only these keys exist; callers
// cannot filter on anything else.
type ProductFilter struct {
	StoreID       *string
	CategoryID    *string
	SubCategoryID *string
	Status        *string
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns one page of products matching filter, ordered by sort,
	// together with the total number of matches.
	List(ctx context.Context, filter ProductFilter, page pagination.Params, sort []domain.SortKey) ([]domain.Product, int, error)

	// Update writes only the columns set in patch plus updated_at and
	// returns the stored row.
	Update(ctx context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error)

	Delete(ctx context.Context, id string) error
}

// CategoryRepository persists the category hierarchy.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
}

// StoreRepository persists seller stores.
type StoreRepository interface {
	Create(ctx context.Context, store *domain.Store) error
	GetByID(ctx context.Context, id string) (*domain.Store, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Store, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Store, error)
	UpdateLogo(ctx context.Context, id, logoURL string) (*domain.Store, error)
}

// ReviewRepository persists product reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string, page pagination.Params) ([]domain.Review, int, error)
	Summary(ctx context.Context, productID string) (*domain.ReviewSummary, error)
	Delete(ctx context.Context, id string) error
}

// ConversationRepository persists chat threads, their messages and the
// per-participant unread counters.
type ConversationRepository interface {
	// GetOrCreate returns the conversation between the ordered pair about
	// the given product, creating it when missing. created reports which
	// happened.
	GetOrCreate(ctx context.Context, conv *domain.Conversation) (result *domain.Conversation, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID string, page pagination.Params) ([]domain.Conversation, int, error)

	// AppendMessage stores msg, refreshes the last-message preview and
	// increments recipientID's unread counter in one transaction.
	AppendMessage(ctx context.Context, msg *domain.Message, recipientID string) error

	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context, conversationID string, page pagination.Params) ([]domain.Message, int, error)

	ResetUnread(ctx context.Context, conversationID, userID string) error
	TotalUnread(ctx context.Context, userID string) (int, error)
}
