package domain

import (
	"time"
)

// Category represents a catalog category. Subcategories point at their
// parent through ParentID.
type Category struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	ParentID    *string     `json:"parent_id"`
	Level       int         `json:"level"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Children    []*Category `json:"children,omitempty"`
}

// IsChildOf reports whether c is a direct subcategory of parentID.
func (c *Category) IsChildOf(parentID string) bool {
	return c.ParentID != nil && *c.ParentID == parentID
}

// BuildCategoryTree nests a flat category list by parent. Categories whose
// parent is not in the list are returned as roots.
func BuildCategoryTree(categories []Category) []*Category {
	nodes := make(map[string]*Category, len(categories))
	for i := range categories {
		c := categories[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	roots := make([]*Category, 0)
	for i := range categories {
		node := nodes[categories[i].ID]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
