package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product status constants.
const (
	ProductStatusActive     = "Active"
	ProductStatusInactive   = "Inactive"
	ProductStatusOutOfStock = "OutOfStock"
	ProductStatusDeleted    = "Deleted"
)

// MaxGalleryImages is the upper bound on additional images per product.
const MaxGalleryImages = 5

// Product represents a seller's listing in the catalog.
type Product struct {
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

// ProductPatch is a sparse set of product column changes. Only non-nil
// fields are written; ClearSubCategory nulls both subcategory columns.
type ProductPatch struct {
	Name             *string
	Description      *string
	Price            *decimal.Decimal
	Stock            *int
	Status           *string
	CategoryID       *string
	CategoryName     *string
	SubCategoryID    *string
	SubCategoryName  *string
	ClearSubCategory bool
	MainImageURL     *string
	ImageURLs        *[]string
}

// IsEmpty reports whether the patch touches no column.
func (p *ProductPatch) IsEmpty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Price == nil &&
		p.Stock == nil &&
		p.Status == nil &&
		p.CategoryID == nil &&
		p.CategoryName == nil &&
		p.SubCategoryID == nil &&
		p.SubCategoryName == nil &&
		!p.ClearSubCategory &&
		p.MainImageURL == nil &&
		p.ImageURLs == nil
}

// Apply copies the patch onto p. Used to build the post-update view and in
// in-memory fakes.
func (p *ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Status != nil {
		product.Status = *p.Status
	}
	if p.CategoryID != nil {
		product.CategoryID = *p.CategoryID
	}
	if p.CategoryName != nil {
		product.CategoryName = *p.CategoryName
	}
	if p.ClearSubCategory {
		product.SubCategoryID = nil
		product.SubCategoryName = nil
	}
	if p.SubCategoryID != nil {
		product.SubCategoryID = p.SubCategoryID
	}
	if p.SubCategoryName != nil {
		product.SubCategoryName = p.SubCategoryName
	}
	if p.MainImageURL != nil {
		product.MainImageURL = *p.MainImageURL
	}
	if p.ImageURLs != nil {
		product.ImageURLs = append([]string(nil), (*p.ImageURLs)...)
	}
}

// ValidStatuses returns the set of valid product statuses.
func ValidStatuses() []string {
	return []string{ProductStatusActive, ProductStatusInactive, ProductStatusOutOfStock, ProductStatusDeleted}
}

// IsValidStatus checks whether the given status string is a valid product status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// Sortable product fields mapped to their column names.
var productSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"price":      "price",
	"name":       "name",
	"stock":      "stock",
}

// SortKey orders a product listing by Field; Direction is 1 (ascending) or
// -1 (descending).
type SortKey struct {
	Field     string
	Direction int
}

// SortColumn returns the column backing a sortable field.
func SortColumn(field string) (string, bool) {
	col, ok := productSortColumns[field]
	return col, ok
}

// DefaultProductSort is newest first.
func DefaultProductSort() []SortKey {
	return []SortKey{{Field: "created_at", Direction: -1}}
}
