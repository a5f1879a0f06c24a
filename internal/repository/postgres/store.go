package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const storeColumns = `id, user_id, store_name, logo_url, status, created_at, updated_at`

// StoreRepository implements store persistence using PostgreSQL.
type StoreRepository struct {
	db database.DBTX
}

// NewStoreRepository creates a new PostgreSQL-backed store repository.
func NewStoreRepository(db database.DBTX) *StoreRepository {
	return &StoreRepository{db: db}
}

var _ repository.StoreRepository = (*StoreRepository)(nil)

// Create inserts a new store. A user cannot own two stores with the same name.
func (r *StoreRepository) Create(ctx context.Context, s *domain.Store) (err error) {
	query := `INSERT INTO stores (` + storeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "stores.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, s.ID, s.UserID, s.StoreName, s.LogoURL, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("store", "store_name", s.StoreName)
		}
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

// GetByID retrieves a store by its ID.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (s *domain.Store, err error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "stores.get", query)
	defer func() { end(err) }()

	s = &domain.Store{}
	err = r.db.QueryRow(ctx, query, id).Scan(storeDest(s)...)
	if isMissingRow(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get store %s: %w", id, err)
	}
	return s, nil
}

// ListByUser returns the stores owned by userID, newest first.
func (r *StoreRepository) ListByUser(ctx context.Context, userID string) (stores []domain.Store, err error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE user_id = $1 ORDER BY created_at DESC`

	ctx, end := database.TraceQuery(ctx, "stores.list_by_user", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	stores = []domain.Store{}
	for rows.Next() {
		var s domain.Store
		if err := rows.Scan(storeDest(&s)...); err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store rows: %w", err)
	}
	return stores, nil
}

// UpdateStatus sets the store status and returns the updated row.
func (r *StoreRepository) UpdateStatus(ctx context.Context, id, status string) (s *domain.Store, err error) {
	query := `UPDATE stores SET status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + storeColumns

	ctx, end := database.TraceQuery(ctx, "stores.update_status", query)
	defer func() { end(err) }()

	s = &domain.Store{}
	err = r.db.QueryRow(ctx, query, status, time.Now().UTC(), id).Scan(storeDest(s)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update store status: %w", err)
	}
	return s, nil
}

// UpdateLogo sets the store logo URL and returns the updated row.
func (r *StoreRepository) UpdateLogo(ctx context.Context, id, logoURL string) (s *domain.Store, err error) {
	query := `UPDATE stores SET logo_url = $1, updated_at = $2 WHERE id = $3 RETURNING ` + storeColumns

	ctx, end := database.TraceQuery(ctx, "stores.update_logo", query)
	defer func() { end(err) }()

	s = &domain.Store{}
	err = r.db.QueryRow(ctx, query, logoURL, time.Now().UTC(), id).Scan(storeDest(s)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update store logo: %w", err)
	}
	return s, nil
}

func storeDest(s *domain.Store) []any {
	return []any{&s.ID, &s.UserID, &s.StoreName, &s.LogoURL, &s.Status, &s.CreatedAt, &s.UpdatedAt}
}
