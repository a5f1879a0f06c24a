package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func strPtr(s string) *string { return &s }

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var productColumnNames = []string{
	"id", "name", "description", "price", "stock", "category_id", "category_name",
	"sub_category_id", "sub_category_name", "seller_id", "store_id", "main_image_url",
	"image_urls", "status", "created_at", "updated_at",
}

var productColumnNamesWithCount = append(append([]string{}, productColumnNames...), "total_count")

func sampleProduct() domain.Product {
	return domain.Product{
		ID:              "prod-1",
		Name:            "Ceramic Mug",
		Description:     "Hand thrown",
		Price:           decimal.RequireFromString("19.90"),
		Stock:           12,
		CategoryID:      "cat-1",
		CategoryName:    "Kitchen",
		SubCategoryID:   strPtr("cat-2"),
		SubCategoryName: strPtr("Mugs"),
		SellerID:        "seller-1",
		StoreID:         "store-1",
		MainImageURL:    "https://cdn.example.com/products/main-1.jpg",
		ImageURLs:       []string{"https://cdn.example.com/products/gallery-1.jpg"},
		Status:          domain.ProductStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// productRow renders price as text, the way NUMERIC reaches a sql.Scanner.
func productRow(p domain.Product) []any {
	return []any{
		p.ID, p.Name, p.Description, p.Price.String(), p.Stock, p.CategoryID, p.CategoryName,
		p.SubCategoryID, p.SubCategoryName, p.SellerID, p.StoreID, p.MainImageURL,
		p.ImageURLs, p.Status, p.CreatedAt, p.UpdatedAt,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ProductRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestProductRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(
			p.ID, p.Name, p.Description, pgxmock.AnyArg(), p.Stock, p.CategoryID, p.CategoryName,
			p.SubCategoryID, p.SubCategoryName, p.SellerID, p.StoreID, p.MainImageURL,
			p.ImageURLs, p.Status, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), &p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Create_NilImagesStoredAsEmpty(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	p.ImageURLs = nil
	mock.ExpectExec("INSERT INTO products").
		WithArgs(
			p.ID, p.Name, p.Description, pgxmock.AnyArg(), p.Stock, p.CategoryID, p.CategoryName,
			p.SubCategoryID, p.SubCategoryName, p.SellerID, p.StoreID, p.MainImageURL,
			[]string{}, p.Status, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Create_ForeignKeyViolation(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	mock.ExpectExec("INSERT INTO products").
		WillReturnError(errors.New("ERROR: insert violates foreign key constraint (SQLSTATE 23503)"))

	err := repo.Create(context.Background(), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productColumnNames).AddRow(productRow(p)...))

	result, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, result.ID)
	assert.True(t, p.Price.Equal(result.Price))
	assert.Equal(t, p.SubCategoryName, result.SubCategoryName)
	assert.Equal(t, p.ImageURLs, result.ImageURLs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_MalformedIDIsNotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})

	result, err := repo.GetByID(context.Background(), "abc")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_QueryFailureIsWrapped(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

	_, err := repo.GetByID(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get product abc")
}

func TestProductRepository_List_DefaultsToNewestFirst(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	mock.ExpectQuery(`SELECT .+ FROM products\s+ORDER BY created_at DESC, id ASC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(productColumnNamesWithCount).AddRow(append(productRow(p), 1)...))

	products, total, err := repo.List(context.Background(), repository.ProductFilter{}, pagination.Params{Page: 1, Limit: 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, p.ID, products[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_WithFiltersAndSort(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	filter := repository.ProductFilter{
		StoreID: strPtr("store-1"),
		Status:  strPtr(domain.ProductStatusActive),
	}
	sort := []domain.SortKey{
		{Field: "price", Direction: 1},
		{Field: "password", Direction: 1},
		{Field: "name", Direction: -1},
	}

	mock.ExpectQuery(`WHERE store_id = \$1 AND status = \$2\s+ORDER BY price ASC, name DESC, id ASC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs("store-1", domain.ProductStatusActive, 10, 20).
		WillReturnRows(pgxmock.NewRows(productColumnNamesWithCount))

	products, total, err := repo.List(context.Background(), filter, pagination.Params{Page: 3, Limit: 10}, sort)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name string
		sort []domain.SortKey
		want string
	}{
		{"default", nil, "created_at DESC, id ASC"},
		{"single ascending", []domain.SortKey{{Field: "stock", Direction: 1}}, "stock ASC, id ASC"},
		{"duplicates dropped", []domain.SortKey{{Field: "name", Direction: 1}, {Field: "name", Direction: -1}}, "name ASC, id ASC"},
		{"all unknown", []domain.SortKey{{Field: "seller_id", Direction: 1}}, "created_at DESC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(tt.sort))
		})
	}
}

func TestProductRepository_Update_Sparse(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	p.Name = "Stoneware Mug"
	stock := 3
	patch := &domain.ProductPatch{Name: &p.Name, Stock: &stock}

	mock.ExpectQuery(`UPDATE products SET name = \$1, stock = \$2, updated_at = \$3 WHERE id = \$4 RETURNING`).
		WithArgs(p.Name, 3, pgxmock.AnyArg(), p.ID).
		WillReturnRows(pgxmock.NewRows(productColumnNames).AddRow(productRow(p)...))

	result, err := repo.Update(context.Background(), p.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "Stoneware Mug", result.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_ClearSubCategory(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	p := sampleProduct()
	p.SubCategoryID = nil
	p.SubCategoryName = nil
	patch := &domain.ProductPatch{
		CategoryID:       strPtr("cat-9"),
		CategoryName:     strPtr("Garden"),
		ClearSubCategory: true,
	}

	mock.ExpectQuery(`UPDATE products SET category_id = \$1, category_name = \$2, sub_category_id = \$3, sub_category_name = \$4, updated_at = \$5 WHERE id = \$6`).
		WithArgs("cat-9", "Garden", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), p.ID).
		WillReturnRows(pgxmock.NewRows(productColumnNames).AddRow(productRow(p)...))

	result, err := repo.Update(context.Background(), p.ID, patch)
	require.NoError(t, err)
	assert.Nil(t, result.SubCategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_EmptyPatch(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	result, err := repo.Update(context.Background(), "prod-1", &domain.ProductPatch{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	name := "x"
	mock.ExpectQuery("UPDATE products SET").
		WithArgs(name, pgxmock.AnyArg(), "missing").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.Update(context.Background(), "missing", &domain.ProductPatch{Name: &name})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	mock.ExpectExec("DELETE FROM products WHERE id").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, repo.Delete(context.Background(), "prod-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewProductRepository(mock)

	mock.ExpectExec("DELETE FROM products WHERE id").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
