// Package service implements the marketplace use cases on top of the
// repositories, the image store and the event publishers.
package service

import (
	"context"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/storage"
)

// ImageStore uploads and removes images. *storage.ImageStore implements it.
type ImageStore interface {
	Upload(ctx context.Context, f *storage.File, opts storage.UploadOptions) (string, error)
	UploadMany(ctx context.Context, files []*storage.File, opts storage.UploadOptions) ([]string, error)
	Delete(ctx context.Context, url string) error
	DeleteMany(ctx context.Context, urls []string) storage.DeleteResult
}

// EventPublisher publishes domain events. *event.Producer implements it.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
	PublishProductUpdated(ctx context.Context, product *domain.Product) error
	PublishProductDeleted(ctx context.Context, product *domain.Product) error
	PublishStoreStatusChanged(ctx context.Context, store *domain.Store, oldStatus string) error
	PublishReviewCreated(ctx context.Context, review *domain.Review) error
	PublishReviewDeleted(ctx context.Context, review *domain.Review) error
}

// Notifier pushes real-time notifications to a user's open sessions.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType string, payload any) error
}
