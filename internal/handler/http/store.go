package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/storage"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/validator"
)

// StoreHandler handles HTTP requests for store endpoints.
type StoreHandler struct {
	service        StoreService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewStoreHandler creates a new store HTTP handler.
func NewStoreHandler(svc StoreService, maxUploadBytes int64, logger *slog.Logger) *StoreHandler {
	return &StoreHandler{service: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// OpenStoreRequest is the JSON body for opening a store without a logo.
type OpenStoreRequest struct {
	StoreName string `json:"store_name" validate:"required,notblank,max=100"`
}

// ChangeStatusRequest is the JSON body for moving a store between statuses.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OpenStore handles POST /api/v1/stores
//
// JSON bodies open a store with the default logo; multipart forms carry
// "store_name" and an optional "logo" file.
func (h *StoreHandler) OpenStore(w http.ResponseWriter, r *http.Request) {
	var (
		req  OpenStoreRequest
		logo *storage.File
	)

	if isMultipart(r) {
		f, err := parseForm(w, r, h.maxUploadBytes)
		if err != nil {
			writeInvalid(w, err.Error())
			return
		}
		defer f.Close()

		req.StoreName = f.Value("store_name")
		if logo, err = f.File("logo"); err != nil {
			writeInvalid(w, err.Error())
			return
		}
		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	} else if !decodeAndValidate(w, r, &req) {
		return
	}

	store, err := h.service.OpenStore(r.Context(), middleware.UserIDFromContext(r.Context()), req.StoreName, logo)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, store)
}

// GetStore handles GET /api/v1/stores/{id}
func (h *StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, store)
}

// ListMyStores handles GET /api/v1/me/stores
func (h *StoreHandler) ListMyStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListUserStores(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stores)
}

// ChangeStatus handles PATCH /api/v1/stores/{id}/status
func (h *StoreHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	store, err := h.service.ChangeStoreStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, store)
}

// UpdateLogo handles PUT /api/v1/stores/{id}/logo with a multipart "logo" file.
func (h *StoreHandler) UpdateLogo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
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

	logo, err := f.File("logo")
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	store, err := h.service.UpdateStoreLogo(r.Context(), id, middleware.UserIDFromContext(r.Context()), logo)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, store)
}
