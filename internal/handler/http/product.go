package http

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service        CatalogService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc CatalogService, maxUploadBytes int64, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the "data" part of a product creation form.
// Store, category and image presence are checked by the catalog service.
type CreateProductRequest struct {
	Name          string          `json:"name" validate:"max=200"`
	Description   string          `json:"description" validate:"max=5000"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	Stock         int             `json:"stock" validate:"gte=0"`
	CategoryID    string          `json:"category_id" validate:"omitempty,uuid"`
	SubCategoryID *string         `json:"sub_category_id" validate:"omitempty,uuid"`
	StoreID       string          `json:"store_id" validate:"omitempty,uuid"`
}

// UpdateProductRequest is the "data" part of a product update form, or the
// whole body of a JSON update. All fields are optional.
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,notblank,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Stock         *int             `json:"stock" validate:"omitempty,gte=0"`
	Status        *string          `json:"status" validate:"omitempty,oneof=Active Inactive OutOfStock Deleted"`
	CategoryID    *string          `json:"category_id" validate:"omitempty,uuid"`
	SubCategoryID *string          `json:"sub_category_id" validate:"omitempty,uuid"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		writeParamError(w, err.Error())
		return
	}
	sort, err := parseSort(r)
	if err != nil {
		writeParamError(w, err.Error())
		return
	}

	result, err := h.service.ListProducts(r.Context(), filter, pagination.FromRequest(r), sort)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// ListStoreProducts handles GET /api/v1/stores/{id}/products
func (h *ProductHandler) ListStoreProducts(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r)
	if !ok {
		return
	}
	sort, err := parseSort(r)
	if err != nil {
		writeParamError(w, err.Error())
		return
	}

	env, err := h.service.ListStoreProducts(r.Context(), storeID, pagination.FromRequest(r), sort)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, env)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if product == nil {
		writeNotFound(w, "product not found")
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products
//
// The body is multipart/form-data with a JSON "data" field, a "main_image"
// file and up to five "images" files. Extra images are ignored.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeInvalid(w, "request must be multipart/form-data")
		return
	}
	f, err := parseForm(w, r, h.maxUploadBytes)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	defer f.Close()

	var req CreateProductRequest
	if err := validator.DecodeBytesAndValidate([]byte(f.Value("data")), &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	mainImage, err := f.File("main_image")
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	images, err := f.Files("images", "images[]")
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	input := &service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Stock:         req.Stock,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		SellerID:      middleware.UserIDFromContext(r.Context()),
		StoreID:       req.StoreID,
	}

	product, err := h.service.CreateProduct(r.Context(), input, mainImage, images)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}
//
// Accepts either a JSON body with the fields to change or a multipart form
// with an optional "data" field, "main_image", "images" and "image_action".
// Only the product's seller or an admin may update it.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok || !h.authorizeOwner(w, r, id) {
		return
	}

	var (
		req    UpdateProductRequest
		images service.UpdateProductImages
	)

	if isMultipart(r) {
		f, err := parseForm(w, r, h.maxUploadBytes)
		if err != nil {
			writeInvalid(w, err.Error())
			return
		}
		defer f.Close()

		if data := f.Value("data"); data != "" {
			if err := validator.DecodeBytesAndValidate([]byte(data), &req); err != nil {
				httputil.WriteValidationError(w, err)
				return
			}
		}
		if images.Action, err = service.ParseImageAction(f.Value("image_action")); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		if images.MainImage, err = f.File("main_image"); err != nil {
			writeInvalid(w, err.Error())
			return
		}
		if images.AdditionalImages, err = f.Files("images", "images[]"); err != nil {
			writeInvalid(w, err.Error())
			return
		}
	} else {
		if !decodeAndValidate(w, r, &req) {
			return
		}
		images.Action = service.ImageActionKeep
	}

	input := &service.UpdateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Stock:         req.Stock,
		Status:        req.Status,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
	}

	product, err := h.service.UpdateProduct(r.Context(), id, input, images)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok || !h.authorizeOwner(w, r, id) {
		return
	}

	product, err := h.service.DeleteProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if product == nil {
		writeNotFound(w, "product not found")
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// authorizeOwner lets the product's seller or an admin through. It writes
// the error response and returns false otherwise.
func (h *ProductHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	if product == nil {
		writeNotFound(w, "product not found")
		return false
	}

	ctx := r.Context()
	if product.SellerID != middleware.UserIDFromContext(ctx) && !middleware.IsAdmin(ctx) {
		writeForbidden(w, "you can only modify your own products")
		return false
	}
	return true
}
