package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/storage"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const maxStoreNameLength = 100

var storeLogoOpts = storage.UploadOptions{Folder: "stores", Prefix: "logo"}

// StoreService manages seller stores and their approval workflow.
type StoreService struct {
	repo           repository.StoreRepository
	images         ImageStore
	events         EventPublisher
	logger         *slog.Logger
	defaultLogoURL string
}

// NewStoreService creates a new store service. Stores opened without a logo
// get defaultLogoURL, which is never deleted from the image store.
func NewStoreService(
	repo repository.StoreRepository,
	images ImageStore,
	events EventPublisher,
	logger *slog.Logger,
	defaultLogoURL string,
) *StoreService {
	return &StoreService{
		repo:           repo,
		images:         images,
		events:         events,
		logger:         logger,
		defaultLogoURL: defaultLogoURL,
	}
}

// OpenStore creates a pending store for userID.
func (s *StoreService) OpenStore(ctx context.Context, userID, storeName string, logo *storage.File) (*domain.Store, error) {
	name := strings.TrimSpace(storeName)
	if name == "" {
		return nil, apperrors.InvalidInput("store name is required")
	}
	if utf8.RuneCountInString(name) > maxStoreNameLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("store name must be at most %d characters", maxStoreNameLength))
	}

	var logoURL *string
	if logo != nil {
		url, err := s.images.Upload(ctx, logo, storeLogoOpts)
		if err != nil {
			return nil, fmt.Errorf("upload store logo: %w", err)
		}
		logoURL = &url
	} else if s.defaultLogoURL != "" {
		def := s.defaultLogoURL
		logoURL = &def
	}

	now := time.Now().UTC()
	store := &domain.Store{
		ID:        uuid.NewString(),
		UserID:    userID,
		StoreName: name,
		LogoURL:   logoURL,
		Status:    domain.StoreStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, store); err != nil {
		if logo != nil {
			s.discardLogo(ctx, *logoURL, "failed to clean up store logo after db error")
		}
		return nil, fmt.Errorf("create store: %w", err)
	}

	s.logger.InfoContext(ctx, "store opened",
		slog.String("store_id", store.ID),
		slog.String("user_id", userID),
	)
	return store, nil
}

// GetStore returns a store by ID.
func (s *StoreService) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	store, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("store not found")
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	return store, nil
}

// ListUserStores returns the stores owned by userID.
func (s *StoreService) ListUserStores(ctx context.Context, userID string) ([]domain.Store, error) {
	stores, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user stores: %w", err)
	}
	return stores, nil
}

// ChangeStoreStatus moves a store through its approval workflow.
func (s *StoreService) ChangeStoreStatus(ctx context.Context, id, status string) (*domain.Store, error) {
	if !domain.IsValidStoreStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid store status %q", status))
	}

	store, err := s.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionStore(store.Status, status) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot change store status from %s to %s", store.Status, status))
	}

	oldStatus := store.Status
	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update store status: %w", err)
	}

	if err := s.events.PublishStoreStatusChanged(ctx, updated, oldStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish store.status_changed event",
			slog.String("store_id", updated.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "store status changed",
		slog.String("store_id", updated.ID),
		slog.String("from", oldStatus),
		slog.String("to", updated.Status),
	)
	return updated, nil
}

// UpdateStoreLogo replaces the logo of a store owned by userID. The previous
// logo is removed once the new one is stored, unless it is the default
// placeholder.
func (s *StoreService) UpdateStoreLogo(ctx context.Context, id, userID string, logo *storage.File) (*domain.Store, error) {
	if logo == nil {
		return nil, apperrors.InvalidInput("logo image is required")
	}

	store, err := s.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if store.UserID != userID {
		return nil, apperrors.Forbidden("you can only change the logo of your own stores")
	}

	oldURL := ""
	if store.LogoURL != nil {
		oldURL = *store.LogoURL
	}
	url, err := s.images.Upload(ctx, logo, storeLogoOpts)
	if err != nil {
		return nil, fmt.Errorf("upload store logo: %w", err)
	}

	updated, err := s.repo.UpdateLogo(ctx, id, url)
	if err != nil {
		s.discardLogo(ctx, url, "failed to clean up store logo after db error")
		return nil, fmt.Errorf("update store logo: %w", err)
	}
	s.discardLogo(ctx, oldURL, "failed to delete replaced store logo")
	return updated, nil
}

// discardLogo deletes a logo best effort. The placeholder is never deleted.
func (s *StoreService) discardLogo(ctx context.Context, url, msg string) {
	if url == "" || url == s.defaultLogoURL {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), url); err != nil {
		s.logger.WarnContext(ctx, msg,
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}
