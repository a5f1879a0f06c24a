package domain

import (
	"time"
)

// Store status constants.
const (
	StoreStatusPending   = "Pending"
	StoreStatusApproved  = "Approved"
	StoreStatusRejected  = "Rejected"
	StoreStatusSuspended = "Suspended"
)

// Store is a seller's shop front. Products can only be listed under an
// approved store owned by the seller.
type Store struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StoreName string    `json:"store_name"`
	LogoURL   *string   `json:"logo_url"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var storeTransitions = map[string][]string{
	StoreStatusPending:   {StoreStatusApproved, StoreStatusRejected},
	StoreStatusApproved:  {StoreStatusSuspended},
	StoreStatusSuspended: {StoreStatusApproved},
	StoreStatusRejected:  {StoreStatusPending},
}

// IsValidStoreStatus checks whether status is a known store status.
func IsValidStoreStatus(status string) bool {
	_, ok := storeTransitions[status]
	return ok
}

// CanTransitionStore reports whether a store may move from one status to another.
func CanTransitionStore(from, to string) bool {
	for _, s := range storeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsApproved reports whether products may be listed under the store.
func (s *Store) IsApproved() bool {
	return s.Status == StoreStatusApproved
}
