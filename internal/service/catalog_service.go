package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs

type CategoryFilterRequest struct {
	Key         string   `json:"key" binding:"required"`
	DisplayName string   `json:"display_name" binding:"required"`
	Values      []string `json:"values"`
}

type CreateCategoryRequest struct {
	Name        string                  `json:"name" binding:"required"`
	ProductType string                  `json:"product_type" binding:"required"`
	Filters     []CategoryFilterRequest `json:"filters"`
}

type UpdateCategoryRequest struct {
	Name        string                   `json:"name"`
	ProductType string                   `json:"product_type"`
	Filters     *[]CategoryFilterRequest `json:"filters"` // nil leaves filters untouched
}

type CreateProductRequest struct {
	Name        string            `json:"name" binding:"required"`
	CategoryID  string            `json:"category_id" binding:"required"`
	Image       string            `json:"image"`
	Price       float64           `json:"price" binding:"required,gt=0"`
	Stock       int               `json:"stock" binding:"gte=0"`
	MinOrderQty int               `json:"min_order_qty"`
	IsAvailable *bool             `json:"is_available"`
	Specs       map[string]string `json:"specs"`
}

type UpdateProductRequest struct {
	Name        string             `json:"name"`
	CategoryID  string             `json:"category_id"`
	Image       *string            `json:"image"`
	Price       *float64           `json:"price" binding:"omitempty,gt=0"`
	Stock       *int               `json:"stock" binding:"omitempty,gte=0"`
	MinOrderQty *int               `json:"min_order_qty" binding:"omitempty,gte=1"`
	IsAvailable *bool              `json:"is_available"`
	Specs       *map[string]string `json:"specs"`
}

type ListProductsQuery struct {
	Page       int
	Limit      int
	Search     string
	CategoryID string
}

// CatalogService covers product and category management
type CatalogService interface {
	CreateCategory(ctx context.Context, actor Actor, req CreateCategoryRequest) (*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, actor Actor, id string, req UpdateCategoryRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, actor Actor, id string) error

	CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, q ListProductsQuery) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, actor Actor, id string, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, actor Actor, id string) error
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func validProductType(pt string) bool {
	switch pt {
	case model.ProductTypeRibbon, model.ProductTypeCreasingMatrix, model.ProductTypeDoubleFaceTape, model.ProductTypeOther:
		return true
	}
	return false
}

// Categories

func (s *catalogService) CreateCategory(ctx context.Context, actor Actor, req CreateCategoryRequest) (*model.Category, error) {
	if !validProductType(req.ProductType) {
		return nil, apperror.Validation("invalid product type: %s", req.ProductType)
	}
	if _, err := s.categoryRepo.FindByName(ctx, req.Name); err == nil {
		return nil, apperror.Conflict("category %q already exists", req.Name)
	}

	category := &model.Category{
		Name:        req.Name,
		ProductType: req.ProductType,
	}
	for _, f := range req.Filters {
		category.Filters = append(category.Filters, model.CategoryFilter{
			Key:         f.Key,
			DisplayName: f.DisplayName,
			Values:      f.Values,
		})
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.categoryRepo.Create(txCtx, category); createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("category %q already exists", req.Name)
			}
			return createErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionCreateCategory, category.ID.String(), category.Name, req))
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	cid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid category id: %s", id)
	}
	category, err := s.categoryRepo.FindByID(ctx, cid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("category not found")
		}
		return nil, err
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *catalogService) UpdateCategory(ctx context.Context, actor Actor, id string, req UpdateCategoryRequest) (*model.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ProductType != "" {
		if !validProductType(req.ProductType) {
			return nil, apperror.Validation("invalid product type: %s", req.ProductType)
		}
		category.ProductType = req.ProductType
	}
	if req.Name != "" && req.Name != category.Name {
		if _, findErr := s.categoryRepo.FindByName(ctx, req.Name); findErr == nil {
			return nil, apperror.Conflict("category %q already exists", req.Name)
		}
		category.Name = req.Name
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.Filters != nil {
			filters := make([]model.CategoryFilter, 0, len(*req.Filters))
			for _, f := range *req.Filters {
				filters = append(filters, model.CategoryFilter{
					CategoryID:  category.ID,
					Key:         f.Key,
					DisplayName: f.DisplayName,
					Values:      f.Values,
				})
			}
			if repErr := s.categoryRepo.ReplaceFilters(txCtx, category.ID, filters); repErr != nil {
				return repErr
			}
			category.Filters = filters
		}
		if saveErr := s.categoryRepo.Update(txCtx, category); saveErr != nil {
			return saveErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdateCategory, category.ID.String(), category.Name, req))
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actor Actor, id string) error {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}

	// Refuse to orphan products
	products, total, err := s.productRepo.List(ctx, 1, 1, "", &category.ID)
	if err != nil {
		return err
	}
	if total > 0 || len(products) > 0 {
		return apperror.Conflict("category has products and cannot be deleted")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.categoryRepo.Delete(txCtx, category.ID); delErr != nil {
			return delErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionDeleteCategory, category.ID.String(), category.Name, nil))
	})
}

// Products

func (s *catalogService) CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, apperror.Validation("invalid category_id: %s", req.CategoryID)
	}
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("category not found")
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}

	minQty := req.MinOrderQty
	if minQty <= 0 {
		minQty = 1
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	product := &model.Product{
		Name:        req.Name,
		CategoryID:  categoryID,
		Image:       req.Image,
		Price:       req.Price,
		Stock:       req.Stock,
		MinOrderQty: minQty,
		IsAvailable: available,
		Specs:       req.Specs,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.productRepo.Create(txCtx, product); createErr != nil {
			return createErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionCreateProduct, product.ID.String(), product.Name, req))
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid product id: %s", id)
	}
	product, err := s.productRepo.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, q ListProductsQuery) ([]model.Product, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	var categoryID *uuid.UUID
	if q.CategoryID != "" {
		cid, err := uuid.Parse(q.CategoryID)
		if err != nil {
			return nil, 0, apperror.Validation("invalid category filter: %s", q.CategoryID)
		}
		categoryID = &cid
	}

	return s.productRepo.List(ctx, q.Page, q.Limit, q.Search, categoryID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, actor Actor, id string, req UpdateProductRequest) (*model.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.CategoryID != "" {
		cid, parseErr := uuid.Parse(req.CategoryID)
		if parseErr != nil {
			return nil, apperror.Validation("invalid category_id: %s", req.CategoryID)
		}
		if _, findErr := s.categoryRepo.FindByID(ctx, cid); findErr != nil {
			return nil, apperror.NotFound("category not found")
		}
		product.CategoryID = cid
		product.Category = nil
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.MinOrderQty != nil {
		product.MinOrderQty = *req.MinOrderQty
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	if req.Specs != nil {
		product.Specs = *req.Specs
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.productRepo.Update(txCtx, product); saveErr != nil {
			return saveErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdateProduct, product.ID.String(), product.Name, req))
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actor Actor, id string) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.productRepo.Delete(txCtx, product.ID); delErr != nil {
			return delErr
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionDeleteProduct, product.ID.String(), product.Name, nil))
	})
}
