// Package event publishes marketplace domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/domain"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/logger"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// Kafka topics for marketplace domain events.
const (
	TopicProductCreated     = "marketplace.product.created"
	TopicProductUpdated     = "marketplace.product.updated"
	TopicProductDeleted     = "marketplace.product.deleted"
	TopicStoreStatusChanged = "marketplace.store.status_changed"
	TopicReviewCreated      = "marketplace.review.created"
	TopicReviewDeleted      = "marketplace.review.deleted"
)

// Aggregate types.
const (
	AggregateTypeProduct = "product"
	AggregateTypeStore   = "store"
	AggregateTypeReview  = "review"
)

// SourceMarketplace identifies events originating from this service.
const SourceMarketplace = "marketplace-api"

// MetadataActor is the metadata key holding the ID of the authenticated user
// whose request produced the event.
const MetadataActor = "actor"

// ProductData is the payload for product events.
type ProductData struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	CategoryID    string          `json:"category_id"`
	SubCategoryID *string         `json:"sub_category_id"`
	SellerID      string          `json:"seller_id"`
	StoreID       string          `json:"store_id"`
	Status        string          `json:"status"`
}

// StoreStatusChangedData is the payload for a store.status_changed event.
type StoreStatusChangedData struct {
	StoreID   string `json:"store_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ReviewData is the payload for review events.
type ReviewData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
}

// Publisher is the part of the Kafka producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes marketplace domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Stock:         p.Stock,
		CategoryID:    p.CategoryID,
		SubCategoryID: p.SubCategoryID,
		SellerID:      p.SellerID,
		StoreID:       p.StoreID,
		Status:        p.Status,
	}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductDeleted, product.ID, AggregateTypeProduct, productData(product))
}

// PublishStoreStatusChanged publishes a store.status_changed event.
func (p *Producer) PublishStoreStatusChanged(ctx context.Context, store *domain.Store, oldStatus string) error {
	return p.publish(ctx, TopicStoreStatusChanged, store.ID, AggregateTypeStore, StoreStatusChangedData{
		StoreID:   store.ID,
		UserID:    store.UserID,
		OldStatus: oldStatus,
		NewStatus: store.Status,
	})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, review.ID, AggregateTypeReview, reviewData(review))
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDeleted, review.ID, AggregateTypeReview, reviewData(review))
}

func reviewData(r *domain.Review) ReviewData {
	return ReviewData{ID: r.ID, ProductID: r.ProductID, UserID: r.UserID, Rating: r.Rating}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceMarketplace, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if actor := middleware.UserIDFromContext(ctx); actor != "" {
		evt.WithMetadata(MetadataActor, actor)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// Noop discards every event. Used when Kafka is disabled.
type Noop struct{}

func (Noop) PublishProductCreated(context.Context, *domain.Product) error           { return nil }
func (Noop) PublishProductUpdated(context.Context, *domain.Product) error           { return nil }
func (Noop) PublishProductDeleted(context.Context, *domain.Product) error           { return nil }
func (Noop) PublishStoreStatusChanged(context.Context, *domain.Store, string) error { return nil }
func (Noop) PublishReviewCreated(context.Context, *domain.Review) error             { return nil }
func (Noop) PublishReviewDeleted(context.Context, *domain.Review) error             { return nil }
