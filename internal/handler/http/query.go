package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
)

// parseSort reads ?sort=price,-created_at. A leading "-" sorts descending.
// An empty value yields nil so the listing falls back to its default order.
func parseSort(r *http.Request) ([]domain.SortKey, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("sort"))
	if raw == "" {
		return nil, nil
	}

	var keys []domain.SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := 1
		switch {
		case strings.HasPrefix(part, "-"):
			dir, part = -1, part[1:]
		case strings.HasPrefix(part, "+"):
			part = part[1:]
		}
		if _, ok := domain.SortColumn(part); !ok {
			return nil, fmt.Errorf("cannot sort by %q", part)
		}
		keys = append(keys, domain.SortKey{Field: part, Direction: dir})
	}
	return keys, nil
}

// parseProductFilter reads the supported filter keys. Anything else in the
// query string is ignored. ID filters must be UUIDs.
func parseProductFilter(r *http.Request) (repository.ProductFilter, error) {
	q := r.URL.Query()
	var f repository.ProductFilter

	for key, dst := range map[string]**string{
		"store_id":        &f.StoreID,
		"category_id":     &f.CategoryID,
		"sub_category_id": &f.SubCategoryID,
	} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		if err := uuid.Validate(v); err != nil {
			return f, fmt.Errorf("%s must be a valid UUID", key)
		}
		*dst = &v
	}
	if v := q.Get("status"); v != "" {
		if !domain.IsValidStatus(v) {
			return f, fmt.Errorf("status must be one of: %s", strings.Join(domain.ValidStatuses(), ", "))
		}
		f.Status = &v
	}
	return f, nil
}
