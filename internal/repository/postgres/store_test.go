package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var storeColumnNames = []string{"id", "user_id", "store_name", "logo_url", "status", "created_at", "updated_at"}

func sampleStore() domain.Store {
	return domain.Store{
		ID:        "store-1",
		UserID:    "seller-1",
		StoreName: "Clay Corner",
		LogoURL:   strPtr("https://cdn.example.com/stores/logo.png"),
		Status:    domain.StoreStatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func storeRow(s domain.Store) []any {
	return []any{s.ID, s.UserID, s.StoreName, s.LogoURL, s.Status, s.CreatedAt, s.UpdatedAt}
}

func TestStoreRepository_Create_DuplicateName(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	s := sampleStore()
	mock.ExpectExec("INSERT INTO stores").
		WithArgs(s.ID, s.UserID, s.StoreName, s.LogoURL, s.Status, s.CreatedAt, s.UpdatedAt).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), &s)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	s := sampleStore()
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id").
		WithArgs(s.ID).
		WillReturnRows(pgxmock.NewRows(storeColumnNames).AddRow(storeRow(s)...))

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApproved())
	assert.Equal(t, s.UserID, got.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM stores WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreRepository_GetByID_MalformedIDIsNotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM stores WHERE id").
		WithArgs("x").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := repo.GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreRepository_ListByUser(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	s := sampleStore()
	mock.ExpectQuery("FROM stores WHERE user_id").
		WithArgs(s.UserID).
		WillReturnRows(pgxmock.NewRows(storeColumnNames).AddRow(storeRow(s)...))

	stores, err := repo.ListByUser(context.Background(), s.UserID)
	require.NoError(t, err)
	assert.Len(t, stores, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepository_UpdateStatus(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	s := sampleStore()
	s.Status = domain.StoreStatusSuspended
	mock.ExpectQuery("UPDATE stores SET status").
		WithArgs(domain.StoreStatusSuspended, pgxmock.AnyArg(), s.ID).
		WillReturnRows(pgxmock.NewRows(storeColumnNames).AddRow(storeRow(s)...))

	got, err := repo.UpdateStatus(context.Background(), s.ID, domain.StoreStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStatusSuspended, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepository_UpdateLogo_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewStoreRepository(mock)

	mock.ExpectQuery("UPDATE stores SET logo_url").
		WithArgs("https://cdn.example.com/stores/new.png", pgxmock.AnyArg(), "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateLogo(context.Background(), "missing", "https://cdn.example.com/stores/new.png")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
