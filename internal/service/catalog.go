package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/storage"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// Image placement for product uploads.
const (
	productImageFolder = "products"
	mainImagePrefix    = "main"
	galleryImagePrefix = "gallery"
)

var (
	mainImageOpts    = storage.UploadOptions{Folder: productImageFolder, Prefix: mainImagePrefix}
	galleryImageOpts = storage.UploadOptions{Folder: productImageFolder, Prefix: galleryImagePrefix}
)

// ImageAction selects how an update treats the product's gallery images.
type ImageAction string

// Image actions.
const (
	ImageActionKeep    ImageAction = "keep"
	ImageActionAdd     ImageAction = "add"
	ImageActionReplace ImageAction = "replace"
)

// ParseImageAction maps a request value to an ImageAction. Empty means keep.
func ParseImageAction(s string) (ImageAction, error) {
	switch a := ImageAction(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ImageActionKeep, nil
	case ImageActionKeep, ImageActionAdd, ImageActionReplace:
		return a, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("image action must be one of keep, add, replace (got %q)", s))
	}
}

// CatalogService runs the product create, update, delete and read use cases.
type CatalogService struct {
	products        repository.ProductRepository
	stores          repository.StoreRepository
	categories      repository.CategoryRepository
	images          ImageStore
	events          EventPublisher
	logger          *slog.Logger
	defaultImageURL string
}

// NewCatalogService creates a new catalog service. defaultImageURL is a
// shared placeholder that is never deleted from the image store.
func NewCatalogService(
	products repository.ProductRepository,
	stores repository.StoreRepository,
	categories repository.CategoryRepository,
	images ImageStore,
	events EventPublisher,
	logger *slog.Logger,
	defaultImageURL string,
) *CatalogService {
	return &CatalogService{
		products:        products,
		stores:          stores,
		categories:      categories,
		images:          images,
		events:          events,
		logger:          logger,
		defaultImageURL: defaultImageURL,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Stock         int
	CategoryID    string
	SubCategoryID *string
	SellerID      string
	StoreID       string
}

// UpdateProductInput holds the optional product fields to change.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	Stock         *int
	Status        *string
	CategoryID    *string
	SubCategoryID *string
}

// UpdateProductImages carries the image part of an update.
type UpdateProductImages struct {
	MainImage        *storage.File
	AdditionalImages []*storage.File
	Action           ImageAction
}

// CreateProduct validates the store and category references, uploads the
// images and stores the product. Nothing is uploaded until every check passes.
func (s *CatalogService) CreateProduct(
	ctx context.Context,
	input *CreateProductInput,
	mainImage *storage.File,
	additionalImages []*storage.File,
) (*ProductResponse, error) {
	product, err := s.createProduct(ctx, input, mainImage, additionalImages)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return ToProductResponse(product), nil
}

func (s *CatalogService) createProduct(
	ctx context.Context,
	input *CreateProductInput,
	mainImage *storage.File,
	additionalImages []*storage.File,
) (*domain.Product, error) {
	if mainImage == nil {
		return nil, apperrors.InvalidInput("main product image is required")
	}
	if input.StoreID == "" {
		return nil, apperrors.InvalidInput("store id is required")
	}
	if input.CategoryID == "" {
		return nil, apperrors.InvalidInput("category id is required")
	}
	if err := validateProductFields(input.Name, input.Price, input.Stock); err != nil {
		return nil, err
	}

	if _, err := s.sellableStore(ctx, input.StoreID, input.SellerID); err != nil {
		return nil, err
	}

	category, err := s.activeCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	var subCategory *domain.Category
	if input.SubCategoryID != nil && *input.SubCategoryID != "" {
		if subCategory, err = s.subCategoryOf(ctx, *input.SubCategoryID, category.ID); err != nil {
			return nil, err
		}
	}

	mainURL, err := s.images.Upload(ctx, mainImage, mainImageOpts)
	if err != nil {
		return nil, err
	}

	gallery := []string{}
	if len(additionalImages) > 0 {
		if gallery, err = s.images.UploadMany(ctx, firstN(additionalImages, domain.MaxGalleryImages), galleryImageOpts); err != nil {
			s.discardImages(ctx, "", mainURL)
			return nil, err
		}
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		Price:        input.Price,
		Stock:        input.Stock,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		SellerID:     input.SellerID,
		StoreID:      input.StoreID,
		MainImageURL: mainURL,
		ImageURLs:    gallery,
		Status:       domain.ProductStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if subCategory != nil {
		product.SubCategoryID = &subCategory.ID
		product.SubCategoryName = &subCategory.Name
	}

	if err := s.products.Create(ctx, product); err != nil {
		s.discardImages(ctx, product.ID, append([]string{mainURL}, gallery...)...)
		return nil, err
	}

	if err := s.events.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("store_id", product.StoreID),
		slog.Int("gallery_images", len(product.ImageURLs)),
	)
	return product, nil
}

// UpdateProduct applies a partial update. Category and subcategory are only
// revalidated when present in input, and the gallery follows images.Action.
func (s *CatalogService) UpdateProduct(
	ctx context.Context,
	id string,
	input *UpdateProductInput,
	images UpdateProductImages,
) (*ProductResponse, error) {
	product, err := s.updateProduct(ctx, id, input, images)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return ToProductResponse(product), nil
}

func (s *CatalogService) updateProduct(
	ctx context.Context,
	id string,
	input *UpdateProductInput,
	images UpdateProductImages,
) (*domain.Product, error) {
	if input == nil {
		input = &UpdateProductInput{}
	}

	current, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("product not found")
		}
		return nil, err
	}

	patch, err := s.fieldPatch(ctx, current, input)
	if err != nil {
		return nil, err
	}

	// New images are uploaded first and the ones they supersede are only
	// removed once the row points at the new set.
	var uploaded, stale []string
	if images.MainImage != nil {
		url, err := s.images.Upload(ctx, images.MainImage, mainImageOpts)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, url)
		stale = append(stale, current.MainImageURL)
		patch.MainImageURL = &url
	}

	change, err := s.applyImageAction(ctx, current, images)
	if err != nil {
		s.discardImages(ctx, id, uploaded...)
		return nil, err
	}
	if change != nil {
		patch.ImageURLs = &change.urls
		uploaded = append(uploaded, change.added...)
		stale = append(stale, change.removed...)
	}

	if patch.IsEmpty() {
		return nil, apperrors.InvalidInput("at least one field must be updated")
	}

	updated, err := s.products.Update(ctx, id, patch)
	if err != nil {
		s.discardImages(ctx, id, uploaded...)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("product not found")
		}
		return nil, err
	}
	s.discardImages(ctx, id, stale...)

	if err := s.events.PublishProductUpdated(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", updated.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", updated.ID))
	return updated, nil
}

// fieldPatch validates the scalar and category fields of input and returns
// the patch for them. No image store call happens here.
func (s *CatalogService) fieldPatch(ctx context.Context, current *domain.Product, input *UpdateProductInput) (*domain.ProductPatch, error) {
	patch := &domain.ProductPatch{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("product name must not be empty")
		}
		patch.Name = &name
	}
	if input.Description != nil {
		patch.Description = input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, apperrors.InvalidInput("price must not be negative")
		}
		patch.Price = input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, apperrors.InvalidInput("stock must not be negative")
		}
		patch.Stock = input.Stock
	}
	if input.Status != nil {
		if !domain.IsValidStatus(*input.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid product status %q", *input.Status))
		}
		patch.Status = input.Status
	}

	categoryID := current.CategoryID
	if input.CategoryID != nil {
		category, err := s.activeCategory(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		categoryID = category.ID
		patch.CategoryID = &category.ID
		patch.CategoryName = &category.Name
		if input.SubCategoryID == nil {
			patch.ClearSubCategory = true
		}
	}

	if input.SubCategoryID != nil {
		sub, err := s.subCategoryOf(ctx, *input.SubCategoryID, categoryID)
		if err != nil {
			return nil, err
		}
		patch.SubCategoryID = &sub.ID
		patch.SubCategoryName = &sub.Name
	}

	return patch, nil
}

// galleryChange is the outcome of an image action.
type galleryChange struct {
	urls    []string // the gallery to persist
	added   []string // freshly uploaded, part of urls
	removed []string // previously stored, no longer in urls
}

// applyImageAction uploads the images the action calls for and returns the
// resulting gallery, or nil when the gallery stays as it is. Nothing is
// deleted here.
func (s *CatalogService) applyImageAction(ctx context.Context, current *domain.Product, images UpdateProductImages) (*galleryChange, error) {
	switch images.Action {
	case ImageActionReplace:
		change := &galleryChange{urls: []string{}, removed: current.ImageURLs}
		if len(images.AdditionalImages) == 0 {
			return change, nil
		}
		urls, err := s.images.UploadMany(ctx, firstN(images.AdditionalImages, domain.MaxGalleryImages), galleryImageOpts)
		if err != nil {
			return nil, err
		}
		change.urls = urls
		change.added = urls
		return change, nil

	case ImageActionAdd:
		remaining := domain.MaxGalleryImages - len(current.ImageURLs)
		if remaining <= 0 || len(images.AdditionalImages) == 0 {
			return nil, nil
		}
		urls, err := s.images.UploadMany(ctx, firstN(images.AdditionalImages, remaining), galleryImageOpts)
		if err != nil {
			return nil, err
		}
		gallery := make([]string, 0, len(current.ImageURLs)+len(urls))
		gallery = append(gallery, current.ImageURLs...)
		return &galleryChange{urls: append(gallery, urls...), added: urls}, nil

	default:
		return nil, nil
	}
}

// discardImages deletes product images best effort. Empty URLs and the
// placeholder image are skipped, and failures are only logged.
func (s *CatalogService) discardImages(ctx context.Context, productID string, urls ...string) {
	targets := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" && u != s.defaultImageURL {
			targets = append(targets, u)
		}
	}
	if len(targets) == 0 {
		return
	}

	// The request context may already be cancelled by the failure being cleaned up.
	if res := s.images.DeleteMany(context.WithoutCancel(ctx), targets); !res.Success {
		s.logger.WarnContext(ctx, "some product images could not be deleted",
			slog.String("product_id", productID),
			slog.Any("failed", res.Failed),
		)
	}
}

// DeleteProduct removes the product and, best effort, its images. A missing
// product yields nil without error.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) (*ProductResponse, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}
	s.discardImages(ctx, product.ID, append([]string{product.MainImageURL}, product.ImageURLs...)...)

	if err := s.events.PublishProductDeleted(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", product.ID))
	return ToProductResponse(product), nil
}

// GetProduct returns the product or nil when it does not exist.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductResponse, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return ToProductResponse(product), nil
}

// ListProductsResult is a page of products with its pagination metadata.
type ListProductsResult struct {
	Products   []*ProductResponse `json:"products"`
	Pagination pagination.Meta    `json:"pagination"`
}

// ListProducts returns a filtered, sorted page of products. Without a status
// filter only active products are listed.
func (s *CatalogService) ListProducts(
	ctx context.Context,
	filter repository.ProductFilter,
	page pagination.Params,
	sort []domain.SortKey,
) (*ListProductsResult, error) {
	if filter.Status == nil {
		active := domain.ProductStatusActive
		filter.Status = &active
	}
	page = page.Normalize()

	products, total, err := s.products.List(ctx, filter, page, sort)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ListProductsResult{
		Products:   toProductResponses(products),
		Pagination: pagination.NewMeta(total, page),
	}, nil
}

// ListStoreProducts returns the active products of an existing store.
func (s *CatalogService) ListStoreProducts(
	ctx context.Context,
	storeID string,
	page pagination.Params,
	sort []domain.SortKey,
) (*pagination.Envelope[*ProductResponse], error) {
	if _, err := s.stores.GetByID(ctx, storeID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("store not found")
		}
		return nil, fmt.Errorf("get store: %w", err)
	}

	active := domain.ProductStatusActive
	page = page.Normalize()
	products, total, err := s.products.List(ctx, repository.ProductFilter{StoreID: &storeID, Status: &active}, page, sort)
	if err != nil {
		return nil, fmt.Errorf("list store products: %w", err)
	}

	env := pagination.NewEnvelope(toProductResponses(products), total, page)
	return &env, nil
}

// sellableStore loads the store and checks that sellerID owns it and that
// it is approved.
func (s *CatalogService) sellableStore(ctx context.Context, storeID, sellerID string) (*domain.Store, error) {
	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("store not found")
		}
		return nil, err
	}
	if store.UserID != sellerID {
		return nil, apperrors.Forbidden("you can only create products for your own stores")
	}
	if !store.IsApproved() {
		return nil, apperrors.Forbidden(fmt.Sprintf("store is not approved (current status: %s)", store.Status))
	}
	return store, nil
}

func (s *CatalogService) activeCategory(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if category == nil || !category.IsActive {
		return nil, apperrors.NotFoundMessage("category not found or inactive")
	}
	return category, nil
}

func (s *CatalogService) subCategoryOf(ctx context.Context, id, parentID string) (*domain.Category, error) {
	sub, err := s.categories.GetByID(ctx, id)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if sub == nil || !sub.IsActive {
		return nil, apperrors.NotFoundMessage("subcategory not found or inactive")
	}
	if !sub.IsChildOf(parentID) {
		return nil, apperrors.InvalidInput("subcategory does not belong to the selected category")
	}
	return sub, nil
}

func validateProductFields(name string, price decimal.Decimal, stock int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperrors.InvalidInput("product name is required")
	case price.IsNegative():
		return apperrors.InvalidInput("price must not be negative")
	case stock < 0:
		return apperrors.InvalidInput("stock must not be negative")
	}
	return nil
}

// firstN truncates files to at most n entries, keeping input order.
func firstN(files []*storage.File, n int) []*storage.File {
	if len(files) > n {
		return files[:n]
	}
	return files
}
