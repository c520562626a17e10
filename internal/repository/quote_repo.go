package repository

import (
	"context"

	"github.com/azadjordan/megadie-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuoteRepository interface {
	Create(ctx context.Context, quote *model.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	Update(ctx context.Context, quote *model.Quote) error
	UpdateItem(ctx context.Context, item *model.QuoteItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page, limit int) ([]model.Quote, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Quote, error)
}

type quoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) Create(ctx context.Context, quote *model.Quote) error {
	return GetDB(ctx, r.db).Create(quote).Error
}

func (r *quoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var quote model.Quote
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("User").
		First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) Update(ctx context.Context, quote *model.Quote) error {
	return GetDB(ctx, r.db).Omit("Items", "User").Save(quote).Error
}

func (r *quoteRepository) UpdateItem(ctx context.Context, item *model.QuoteItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *quoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("quote_id = ?", id).Delete(&model.QuoteItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Quote{}).Error
}

func (r *quoteRepository) List(ctx context.Context, page, limit int) ([]model.Quote, int64, error) {
	var quotes []model.Quote
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Quote{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Items").
		Preload("User").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&quotes).Error; err != nil {
		return nil, 0, err
	}

	return quotes, total, nil
}

func (r *quoteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Quote, error) {
	var quotes []model.Quote
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}
