package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the page/limit pair every list operation requires.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns the defaults applied at the HTTP edge.
func DefaultParams() Params {
	return Params{Page: DefaultPage, Limit: DefaultLimit}
}

// Offset is the number of rows to skip for the current page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Normalize clamps page and limit into their valid ranges.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// FromRequest extracts pagination parameters from an HTTP request.
// Invalid values fall back to the defaults; limit is capped at MaxLimit.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 {
			p.Limit = min(v, MaxLimit)
		}
	}

	return p
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := total / limit
	if total%limit > 0 {
		pages++
	}
	return pages
}

// Meta describes a page of a list result.
type Meta struct {
	TotalItems   int  `json:"total_items"`
	TotalPages   int  `json:"total_pages"`
	CurrentPage  int  `json:"current_page"`
	ItemsPerPage int  `json:"items_per_page"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
}

// NewMeta computes page metadata for total items under params.
func NewMeta(total int, params Params) Meta {
	pages := TotalPages(total, params.Limit)
	return Meta{
		TotalItems:   total,
		TotalPages:   pages,
		CurrentPage:  params.Page,
		ItemsPerPage: params.Limit,
		HasNextPage:  params.Page < pages,
		HasPrevPage:  params.Page > 1,
	}
}

// Envelope is the generic paginated wrapper used by scoped listings.
type Envelope[T any] struct {
	Data        []T `json:"data"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
}

// NewEnvelope wraps data; a nil slice is rendered as an empty list.
func NewEnvelope[T any](data []T, total int, params Params) Envelope[T] {
	if data == nil {
		data = []T{}
	}
	return Envelope[T]{
		Data:        data,
		TotalItems:  total,
		TotalPages:  TotalPages(total, params.Limit),
		CurrentPage: params.Page,
	}
}
