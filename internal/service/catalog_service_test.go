package service

import (
	"context"
	"testing"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_Categories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, admin := env.createAdmin(t)

	t.Run("rejects unknown product type", func(t *testing.T) {
		_, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
			Name:        "Grosgrain",
			ProductType: "Rope",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("create with filters", func(t *testing.T) {
		category, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
			Name:        "Grosgrain",
			ProductType: model.ProductTypeRibbon,
			Filters: []CategoryFilterRequest{
				{Key: "width", DisplayName: "Width", Values: []string{"1-inch", "0.5-inch"}},
			},
		})
		require.NoError(t, err)
		require.Len(t, category.Filters, 1)
		assert.Equal(t, "width", category.Filters[0].Key)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
			Name:        "Grosgrain",
			ProductType: model.ProductTypeRibbon,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})
}

func TestCatalogService_UpdateCategoryFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, admin := env.createAdmin(t)

	category, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
		Name:        "Satin",
		ProductType: model.ProductTypeRibbon,
		Filters: []CategoryFilterRequest{
			{Key: "width", DisplayName: "Width", Values: []string{"1-inch"}},
		},
	})
	require.NoError(t, err)

	t.Run("nil filters leave the set untouched", func(t *testing.T) {
		updated, err := env.catalog.UpdateCategory(ctx, admin, category.ID.String(), UpdateCategoryRequest{
			Name: "Satin Ribbon",
		})
		require.NoError(t, err)
		assert.Equal(t, "Satin Ribbon", updated.Name)

		reloaded, err := env.catalog.GetCategory(ctx, category.ID.String())
		require.NoError(t, err)
		require.Len(t, reloaded.Filters, 1)
	})

	t.Run("explicit filters replace the set", func(t *testing.T) {
		filters := []CategoryFilterRequest{
			{Key: "color", DisplayName: "Color", Values: []string{"red", "gold"}},
		}
		updated, err := env.catalog.UpdateCategory(ctx, admin, category.ID.String(), UpdateCategoryRequest{
			Filters: &filters,
		})
		require.NoError(t, err)
		require.Len(t, updated.Filters, 1)
		assert.Equal(t, "color", updated.Filters[0].Key)
	})
}

func TestCatalogService_DeleteCategoryWithProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, admin := env.createAdmin(t)

	category, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
		Name:        "Creasing",
		ProductType: model.ProductTypeCreasingMatrix,
	})
	require.NoError(t, err)

	product, err := env.catalog.CreateProduct(ctx, admin, CreateProductRequest{
		Name:       "Matrix 0.4x1.3",
		CategoryID: category.ID.String(),
		Price:      12.5,
		Stock:      30,
	})
	require.NoError(t, err)

	err = env.catalog.DeleteCategory(ctx, admin, category.ID.String())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	// Empty categories delete fine
	require.NoError(t, env.catalog.DeleteProduct(ctx, admin, product.ID.String()))
	require.NoError(t, env.catalog.DeleteCategory(ctx, admin, category.ID.String()))
}

func TestCatalogService_Products(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, admin := env.createAdmin(t)

	category, err := env.catalog.CreateCategory(ctx, admin, CreateCategoryRequest{
		Name:        "Tapes",
		ProductType: model.ProductTypeDoubleFaceTape,
	})
	require.NoError(t, err)

	t.Run("defaults", func(t *testing.T) {
		product, err := env.catalog.CreateProduct(ctx, admin, CreateProductRequest{
			Name:       "Tape 12mm",
			CategoryID: category.ID.String(),
			Price:      3.5,
			Stock:      200,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, product.MinOrderQty)
		assert.True(t, product.IsAvailable)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := env.catalog.CreateProduct(ctx, admin, CreateProductRequest{
			Name:       "Tape 24mm",
			CategoryID: "1a2b3c4d-0000-0000-0000-000000000000",
			Price:      5,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("patch keeps omitted fields", func(t *testing.T) {
		product, err := env.catalog.CreateProduct(ctx, admin, CreateProductRequest{
			Name:       "Tape 6mm",
			CategoryID: category.ID.String(),
			Price:      2.0,
			Stock:      80,
		})
		require.NoError(t, err)

		price := 2.25
		updated, err := env.catalog.UpdateProduct(ctx, admin, product.ID.String(), UpdateProductRequest{
			Price: &price,
		})
		require.NoError(t, err)
		assert.InDelta(t, 2.25, updated.Price, 1e-6)
		assert.Equal(t, 80, updated.Stock)
		assert.Equal(t, "Tape 6mm", updated.Name)
	})

	t.Run("list filters by search and category", func(t *testing.T) {
		products, total, err := env.catalog.ListProducts(ctx, ListProductsQuery{
			Search:     "Tape",
			CategoryID: category.ID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(len(products)), total)
		for _, p := range products {
			assert.Contains(t, p.Name, "Tape")
		}
	})
}
