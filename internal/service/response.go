package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/domain"
)

// ProductResponse is the product shape returned to callers. It never
// exposes the stored record directly.
type ProductResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	CategoryID      string          `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	SubCategoryID   *string         `json:"sub_category_id"`
	SubCategoryName *string         `json:"sub_category_name"`
	SellerID        string          `json:"seller_id"`
	StoreID         string          `json:"store_id"`
	MainImageURL    string          `json:"main_image_url"`
	ImageURLs       []string        `json:"image_urls"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToProductResponse maps a product to its response shape. A nil product
// maps to nil.
func ToProductResponse(p *domain.Product) *ProductResponse {
	if p == nil {
		return nil
	}

	images := make([]string, len(p.ImageURLs))
	copy(images, p.ImageURLs)

	resp := &ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		SellerID:     p.SellerID,
		StoreID:      p.StoreID,
		MainImageURL: p.MainImageURL,
		ImageURLs:    images,
		Status:       p.Status,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.SubCategoryID != nil && *p.SubCategoryID != "" {
		id := *p.SubCategoryID
		resp.SubCategoryID = &id
		if p.SubCategoryName != nil {
			name := *p.SubCategoryName
			resp.SubCategoryName = &name
		}
	}
	return resp
}

func toProductResponses(products []domain.Product) []*ProductResponse {
	out := make([]*ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, ToProductResponse(&products[i]))
	}
	return out
}
