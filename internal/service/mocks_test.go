package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/storage"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// --- Mock Product Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter, page pagination.Params, sort []domain.SortKey) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter, page, sort)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Store Repository ---

type mockStoreRepository struct {
	mock.Mock
}

func (m *mockStoreRepository) Create(ctx context.Context, s *domain.Store) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStoreRepository) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

func (m *mockStoreRepository) ListByUser(ctx context.Context, userID string) ([]domain.Store, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Store), args.Error(1)
}

func (m *mockStoreRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Store, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

func (m *mockStoreRepository) UpdateLogo(ctx context.Context, id, logoURL string) (*domain.Store, error) {
	args := m.Called(ctx, id, logoURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

// --- Mock Category Repository ---

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// --- Mock Review Repository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, r *domain.Review) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID string, page pagination.Params) ([]domain.Review, int, error) {
	args := m.Called(ctx, productID, page)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) Summary(ctx context.Context, productID string) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Conversation Repository ---

type mockConversationRepository struct {
	mock.Mock
}

func (m *mockConversationRepository) GetOrCreate(ctx context.Context, c *domain.Conversation) (*domain.Conversation, bool, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Conversation), args.Bool(1), args.Error(2)
}

func (m *mockConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepository) ListByUser(ctx context.Context, userID string, page pagination.Params) ([]domain.Conversation, int, error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).([]domain.Conversation), args.Int(1), args.Error(2)
}

func (m *mockConversationRepository) AppendMessage(ctx context.Context, msg *domain.Message, recipientID string) error {
	args := m.Called(ctx, msg, recipientID)
	return args.Error(0)
}

func (m *mockConversationRepository) ListMessages(ctx context.Context, conversationID string, page pagination.Params) ([]domain.Message, int, error) {
	args := m.Called(ctx, conversationID, page)
	return args.Get(0).([]domain.Message), args.Int(1), args.Error(2)
}

func (m *mockConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *mockConversationRepository) TotalUnread(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// --- Mock Image Store ---

type mockImageStore struct {
	mock.Mock
}

func (m *mockImageStore) Upload(ctx context.Context, f *storage.File, opts storage.UploadOptions) (string, error) {
	args := m.Called(ctx, f, opts)
	return args.String(0), args.Error(1)
}

func (m *mockImageStore) UploadMany(ctx context.Context, files []*storage.File, opts storage.UploadOptions) ([]string, error) {
	args := m.Called(ctx, files, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockImageStore) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *mockImageStore) DeleteMany(ctx context.Context, urls []string) storage.DeleteResult {
	args := m.Called(ctx, urls)
	return args.Get(0).(storage.DeleteResult)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishProductCreated(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockEventPublisher) PublishProductUpdated(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockEventPublisher) PublishProductDeleted(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockEventPublisher) PublishStoreStatusChanged(ctx context.Context, s *domain.Store, oldStatus string) error {
	return m.Called(ctx, s, oldStatus).Error(0)
}

func (m *mockEventPublisher) PublishReviewCreated(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockEventPublisher) PublishReviewDeleted(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

// --- Mock Notifier ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID, eventType string, payload any) error {
	return m.Called(ctx, userID, eventType, payload).Error(0)
}
