package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/storage"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
)

func productHandler(svc *mockCatalog) *ProductHandler {
	return NewProductHandler(svc, testMaxUpload, logger.Discard())
}

func sampleProduct(sellerID string) *service.ProductResponse {
	return &service.ProductResponse{
		ID:           testProductID,
		Name:         "Phone",
		Price:        decimal.RequireFromString("499.90"),
		Stock:        3,
		CategoryID:   testCategoryID,
		CategoryName: "Electronics",
		SellerID:     sellerID,
		StoreID:      testStoreID,
		MainImageURL: "http://cdn/products/main.png",
		ImageURLs:    []string{},
		Status:       domain.ProductStatusActive,
	}
}

const createData = `{"name":"Phone","description":"A phone","price":"499.90","stock":3,"category_id":"` + testCategoryID + `","store_id":"` + testStoreID + `"}`

// =============================================================================
// CreateProduct
// =============================================================================

func TestCreateProduct_Multipart(t *testing.T) {
	svc := new(mockCatalog)
	h := productHandler(svc)

	svc.On("CreateProduct", mock.Anything,
		mock.MatchedBy(func(in *service.CreateProductInput) bool {
			return in.Name == "Phone" && in.SellerID == "seller-1" && in.StoreID == testStoreID &&
				in.CategoryID == testCategoryID && in.SubCategoryID == nil &&
				in.Price.Equal(decimal.RequireFromString("499.90")) && in.Stock == 3
		}),
		mock.MatchedBy(func(f *storage.File) bool {
			return f != nil && f.Name == "main.png" && f.ContentType == "image/png"
		}),
		mock.MatchedBy(func(files []*storage.File) bool {
			return len(files) == 2 && files[0].Name == "a.png" && files[1].Name == "b.png"
		}),
	).Return(sampleProduct("seller-1"), nil)

	req := multipartRequest(t, http.MethodPost, "/products",
		map[string]string{"data": createData},
		png("main_image", "main.png"), png("images", "a.png"), png("images[]", "b.png"),
	)
	rec := serve(http.MethodPost, "/products", h.CreateProduct, req, "seller-1", middleware.RoleSeller)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, testProductID, data["id"])
	assert.Equal(t, "Electronics", data["category_name"])
	assert.Nil(t, data["sub_category_id"])
	svc.AssertExpectations(t)
}

func TestCreateProduct_RequiresMultipart(t *testing.T) {
	svc := new(mockCatalog)
	req := jsonRequest(t, http.MethodPost, "/products", createData)

	rec := serve(http.MethodPost, "/products", productHandler(svc).CreateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
	svc.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateProduct_RejectsInvalidData(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"missing data", "", "INVALID_INPUT"},
		{"unknown field", `{"name":"x","seller_id":"someone-else"}`, "INVALID_INPUT"},
		{"negative stock", `{"name":"x","price":"1","stock":-1}`, "VALIDATION_ERROR"},
		{"negative price", `{"name":"x","price":"-1"}`, "VALIDATION_ERROR"},
		{"store id not a uuid", `{"name":"x","price":"1","store_id":"store-1"}`, "VALIDATION_ERROR"},
		{"category id not a uuid", `{"name":"x","price":"1","category_id":"abc"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockCatalog)
			req := multipartRequest(t, http.MethodPost, "/products",
				map[string]string{"data": tt.data}, png("main_image", "main.png"))

			rec := serve(http.MethodPost, "/products", productHandler(svc).CreateProduct, req, "seller-1", middleware.RoleSeller)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
			svc.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateProduct_MissingMainImageIsLeftToService(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("CreateProduct", mock.Anything, mock.Anything,
		mock.MatchedBy(func(f *storage.File) bool { return f == nil }),
		mock.MatchedBy(func(files []*storage.File) bool { return len(files) == 0 }),
	).Return(nil, fmt.Errorf("failed to create product: %w", apperrors.InvalidInput("main product image is required")))

	req := multipartRequest(t, http.MethodPost, "/products", map[string]string{"data": createData})
	rec := serve(http.MethodPost, "/products", productHandler(svc).CreateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "main product image is required", resp.Error.Message)
}

func TestCreateProduct_ServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"foreign store", apperrors.Forbidden("you can only create products for your own stores"), http.StatusForbidden},
		{"missing store", apperrors.NotFoundMessage("store not found"), http.StatusNotFound},
		{"storage down", errors.New("minio: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockCatalog)
			svc.On("CreateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, fmt.Errorf("failed to create product: %w", tt.err))

			req := multipartRequest(t, http.MethodPost, "/products",
				map[string]string{"data": createData}, png("main_image", "main.png"))
			rec := serve(http.MethodPost, "/products", productHandler(svc).CreateProduct, req, "seller-1", middleware.RoleSeller)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCreateProduct_BodyTooLarge(t *testing.T) {
	svc := new(mockCatalog)
	h := NewProductHandler(svc, 64, logger.Discard())

	req := multipartRequest(t, http.MethodPost, "/products",
		map[string]string{"data": createData}, png("main_image", "main.png"))
	rec := serve(http.MethodPost, "/products", h.CreateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// UpdateProduct
// =============================================================================

func TestUpdateProduct_JSONPriceOnly(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
	svc.On("UpdateProduct", mock.Anything, testProductID,
		mock.MatchedBy(func(in *service.UpdateProductInput) bool {
			return in.Price != nil && in.Price.Equal(decimal.RequireFromString("19.99")) &&
				in.Name == nil && in.Stock == nil && in.CategoryID == nil
		}),
		mock.MatchedBy(func(img service.UpdateProductImages) bool {
			return img.Action == service.ImageActionKeep && img.MainImage == nil && len(img.AdditionalImages) == 0
		}),
	).Return(sampleProduct("seller-1"), nil)

	req := jsonRequest(t, http.MethodPut, "/products/"+testProductID, map[string]any{"price": "19.99"})
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestUpdateProduct_MultipartAddImages(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
	svc.On("UpdateProduct", mock.Anything, testProductID,
		mock.MatchedBy(func(in *service.UpdateProductInput) bool {
			return in.Stock != nil && *in.Stock == 7
		}),
		mock.MatchedBy(func(img service.UpdateProductImages) bool {
			return img.Action == service.ImageActionAdd && img.MainImage != nil &&
				img.MainImage.Name == "new-main.png" && len(img.AdditionalImages) == 2
		}),
	).Return(sampleProduct("seller-1"), nil)

	req := multipartRequest(t, http.MethodPut, "/products/"+testProductID,
		map[string]string{"data": `{"stock":7}`, "image_action": "ADD"},
		png("main_image", "new-main.png"), png("images", "x.png"), png("images", "y.png"),
	)
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestUpdateProduct_InvalidImageAction(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)

	req := multipartRequest(t, http.MethodPut, "/products/"+testProductID, map[string]string{"image_action": "merge"})
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProduct_InvalidStatus(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)

	req := jsonRequest(t, http.MethodPut, "/products/"+testProductID, map[string]any{"status": "Sold"})
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestUpdateProduct_MalformedCategoryID(t *testing.T) {
	for _, body := range []map[string]any{{"category_id": "cat-1"}, {"sub_category_id": "42"}} {
		svc := new(mockCatalog)
		svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)

		req := jsonRequest(t, http.MethodPut, "/products/"+testProductID, body)
		rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		svc.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestUpdateProduct_MalformedID(t *testing.T) {
	svc := new(mockCatalog)

	req := jsonRequest(t, http.MethodPut, "/products/not-a-uuid", map[string]any{"price": "1"})
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
	assert.Empty(t, svc.Calls)
}

func TestUpdateProduct_Ownership(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		role   string
		status int
	}{
		{"owner", "seller-1", middleware.RoleSeller, http.StatusOK},
		{"admin", "admin-1", middleware.RoleAdmin, http.StatusOK},
		{"other seller", "seller-2", middleware.RoleSeller, http.StatusForbidden},
		{"buyer", "buyer-1", middleware.RoleBuyer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockCatalog)
			svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
			svc.On("UpdateProduct", mock.Anything, testProductID, mock.Anything, mock.Anything).
				Return(sampleProduct("seller-1"), nil).Maybe()

			req := jsonRequest(t, http.MethodPut, "/products/"+testProductID, map[string]any{"stock": 1})
			rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, tt.caller, tt.role)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
				svc.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testUnknownID).Return(nil, nil)

	req := jsonRequest(t, http.MethodPut, "/products/"+testUnknownID, map[string]any{"stock": 1})
	rec := serve(http.MethodPut, "/products/{id}", productHandler(svc).UpdateProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DeleteProduct / GetProduct
// =============================================================================

func TestDeleteProduct_Owner(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
	svc.On("DeleteProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)

	req := httptest.NewRequest(http.MethodDelete, "/products/"+testProductID, nil)
	rec := serve(http.MethodDelete, "/products/{id}", productHandler(svc).DeleteProduct, req, "seller-1", middleware.RoleSeller)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testProductID, decodeResponse(t, rec).Data.(map[string]any)["id"])
}

func TestDeleteProduct_RacedAway(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
	svc.On("DeleteProduct", mock.Anything, testProductID).Return(nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/products/"+testProductID, nil)
	rec := serve(http.MethodDelete, "/products/{id}", productHandler(svc).DeleteProduct, req, "admin-1", middleware.RoleAdmin)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProduct(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("GetProduct", mock.Anything, testProductID).Return(sampleProduct("seller-1"), nil)
	svc.On("GetProduct", mock.Anything, testUnknownID).Return(nil, nil)
	h := productHandler(svc)

	rec := serve(http.MethodGet, "/products/{id}", h.GetProduct, httptest.NewRequest(http.MethodGet, "/products/"+testProductID, nil), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(http.MethodGet, "/products/{id}", h.GetProduct, httptest.NewRequest(http.MethodGet, "/products/"+testUnknownID, nil), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

// =============================================================================
// Listing
// =============================================================================

func TestListProducts_ParsesQuery(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("ListProducts", mock.Anything,
		mock.MatchedBy(func(f repository.ProductFilter) bool {
			return f.StoreID != nil && *f.StoreID == testStoreID &&
				f.Status != nil && *f.Status == domain.ProductStatusInactive &&
				f.CategoryID == nil && f.SubCategoryID == nil
		}),
		pagination.Params{Page: 2, Limit: 10},
		[]domain.SortKey{{Field: "price", Direction: -1}, {Field: "name", Direction: 1}},
	).Return(&service.ListProductsResult{
		Products:   []*service.ProductResponse{sampleProduct("seller-1")},
		Pagination: pagination.NewMeta(11, pagination.Params{Page: 2, Limit: 10}),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/products?store_id="+testStoreID+"&status=Inactive&sort=-price,name&page=2&limit=10&color=red", nil)
	rec := serve(http.MethodGet, "/products", productHandler(svc).ListProducts, req, "", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data service.ListProductsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Products, 1)
	assert.Equal(t, 11, body.Data.Pagination.TotalItems)
	assert.True(t, body.Data.Pagination.HasPrevPage)
	svc.AssertExpectations(t)
}

func TestListProducts_DefaultsLeaveSortEmpty(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("ListProducts", mock.Anything, repository.ProductFilter{}, pagination.DefaultParams(), []domain.SortKey(nil)).
		Return(&service.ListProductsResult{Products: []*service.ProductResponse{}}, nil)

	rec := serve(http.MethodGet, "/products", productHandler(svc).ListProducts, httptest.NewRequest(http.MethodGet, "/products", nil), "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListProducts_RejectsBadQuery(t *testing.T) {
	for _, q := range []string{"sort=password", "sort=-", "status=Sold", "store_id=abc", "category_id=1", "sub_category_id=cat-2"} {
		t.Run(q, func(t *testing.T) {
			svc := new(mockCatalog)
			rec := serve(http.MethodGet, "/products", productHandler(svc).ListProducts, httptest.NewRequest(http.MethodGet, "/products?"+q, nil), "", "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
			svc.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestListStoreProducts_Envelope(t *testing.T) {
	svc := new(mockCatalog)
	env := pagination.NewEnvelope([]*service.ProductResponse{sampleProduct("seller-1")}, 1, pagination.DefaultParams())
	svc.On("ListStoreProducts", mock.Anything, testStoreID, pagination.DefaultParams(), []domain.SortKey{{Field: "created_at", Direction: 1}}).
		Return(&env, nil)

	req := httptest.NewRequest(http.MethodGet, "/stores/"+testStoreID+"/products?sort=%2Bcreated_at", nil)
	rec := serve(http.MethodGet, "/stores/{id}/products", productHandler(svc).ListStoreProducts, req, "", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total_items"])
	assert.EqualValues(t, 1, body["current_page"])
	assert.Len(t, body["data"], 1)
}

func TestListStoreProducts_UnknownStore(t *testing.T) {
	svc := new(mockCatalog)
	svc.On("ListStoreProducts", mock.Anything, testUnknownID, mock.Anything, mock.Anything).
		Return(nil, apperrors.NotFoundMessage("store not found"))

	rec := serve(http.MethodGet, "/stores/{id}/products", productHandler(svc).ListStoreProducts, httptest.NewRequest(http.MethodGet, "/stores/"+testUnknownID+"/products", nil), "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
