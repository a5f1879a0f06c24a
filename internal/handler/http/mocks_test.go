package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/realtime"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/storage"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// =============================================================================
// Service mocks
// =============================================================================

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) CreateProduct(ctx context.Context, input *service.CreateProductInput, mainImage *storage.File, additional []*storage.File) (*service.ProductResponse, error) {
	args := m.Called(ctx, input, mainImage, additional)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductResponse), args.Error(1)
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, id string, input *service.UpdateProductInput, images service.UpdateProductImages) (*service.ProductResponse, error) {
	args := m.Called(ctx, id, input, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductResponse), args.Error(1)
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, id string) (*service.ProductResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductResponse), args.Error(1)
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*service.ProductResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductResponse), args.Error(1)
}

func (m *mockCatalog) ListProducts(ctx context.Context, filter repository.ProductFilter, page pagination.Params, sort []domain.SortKey) (*service.ListProductsResult, error) {
	args := m.Called(ctx, filter, page, sort)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListProductsResult), args.Error(1)
}

func (m *mockCatalog) ListStoreProducts(ctx context.Context, storeID string, page pagination.Params, sort []domain.SortKey) (*pagination.Envelope[*service.ProductResponse], error) {
	args := m.Called(ctx, storeID, page, sort)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Envelope[*service.ProductResponse]), args.Error(1)
}

type mockCategories struct{ mock.Mock }

func (m *mockCategories) CreateCategory(ctx context.Context, input *service.CreateCategoryInput) (*domain.Category, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategories) UpdateCategory(ctx context.Context, id string, input *service.UpdateCategoryInput) (*domain.Category, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategories) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategories) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategories) CategoryTree(ctx context.Context) ([]*domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Category), args.Error(1)
}

type mockStores struct{ mock.Mock }

func (m *mockStores) OpenStore(ctx context.Context, userID, storeName string, logo *storage.File) (*domain.Store, error) {
	args := m.Called(ctx, userID, storeName, logo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

func (m *mockStores) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

func (m *mockStores) ListUserStores(ctx context.Context, userID string) ([]domain.Store, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Store), args.Error(1)
}

func (m *mockStores) ChangeStoreStatus(ctx context.Context, id, status string) (*domain.Store, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

func (m *mockStores) UpdateStoreLogo(ctx context.Context, id, userID string, logo *storage.File) (*domain.Store, error) {
	args := m.Called(ctx, id, userID, logo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Store), args.Error(1)
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) CreateReview(ctx context.Context, input *service.CreateReviewInput) (*domain.Review, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviews) ListReviews(ctx context.Context, productID string, page pagination.Params) (*service.ReviewList, error) {
	args := m.Called(ctx, productID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReviewList), args.Error(1)
}

func (m *mockReviews) DeleteReview(ctx context.Context, id, userID string, isAdmin bool) error {
	return m.Called(ctx, id, userID, isAdmin).Error(0)
}

type mockChat struct{ mock.Mock }

func (m *mockChat) StartConversation(ctx context.Context, initiatorID, recipientID string, productID *string) (*domain.Conversation, error) {
	args := m.Called(ctx, initiatorID, recipientID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockChat) SendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID, senderID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *mockChat) ListConversations(ctx context.Context, userID string, page pagination.Params) (*pagination.Envelope[service.ConversationSummary], error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Envelope[service.ConversationSummary]), args.Error(1)
}

func (m *mockChat) ListMessages(ctx context.Context, conversationID, userID string, page pagination.Params) (*pagination.Envelope[domain.Message], error) {
	args := m.Called(ctx, conversationID, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Envelope[domain.Message]), args.Error(1)
}

func (m *mockChat) MarkRead(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *mockChat) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockStream struct{ mock.Mock }

func (m *mockStream) Subscribe(ctx context.Context, userID string) (*realtime.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*realtime.Subscription), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

const testMaxUpload = 1 << 20

// Resource IDs used across the handler tests. Path IDs must be UUIDs.
const (
	testProductID      = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testStoreID        = "2f6a1c34-5b7d-4e8f-a1b2-c3d4e5f60718"
	testCategoryID     = "a1c2e3f4-0b1d-4c2e-8f3a-5b6c7d8e9f01"
	testSubCategoryID  = "a1c2e3f4-0b1d-4c2e-8f3a-5b6c7d8e9f02"
	testConversationID = "c0ffee00-1234-4abc-8def-0123456789ab"
	testReviewID       = "e5f6a7b8-9c0d-4e1f-a2b3-c4d5e6f7a8b9"
	testUnknownID      = "d3adbeef-0000-4000-8000-000000000404"
)

// serve routes req through a one-route chi mux so URL params resolve.
// A non-empty userID is injected as the authenticated caller.
func serve(method, pattern string, h http.HandlerFunc, req *http.Request, userID, role string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(middleware.WithClaims(req.Context(), &middleware.Claims{UserID: userID, Role: role}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.MethodFunc(method, pattern, h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	field       string
	name        string
	contentType string
	content     string
}

// multipartRequest builds a multipart/form-data request from text fields
// and file parts.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func png(field, name string) filePart {
	return filePart{field: field, name: name, contentType: "image/png", content: "\x89PNG fake"}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error, "expected an error body, got %s", rec.Body.String())
	return resp.Error.Code
}

func strPtr(s string) *string { return &s }
