package service

import (
	"context"

	"github.com/azadjordan/megadie-sub000/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type ProductSalesRanking struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// StatisticsSummary is the admin dashboard snapshot
type StatisticsSummary struct {
	RevenueReceived string                `json:"revenue_received"`
	Receivables     string                `json:"receivables"`
	OutstandingDebt string                `json:"outstanding_debt"`
	OrdersByStatus  []StatusCount         `json:"orders_by_status"`
	OpenInvoices    int64                 `json:"open_invoices"`
	TopSoldProducts []ProductSalesRanking `json:"top_sold_products"`
	TotalUsers      int64                 `json:"total_users"`
	TotalProducts   int64                 `json:"total_products"`
}

type StatisticsService interface {
	GetSummary(ctx context.Context) (StatisticsSummary, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetSummary aggregates the financial dashboard directly from the ledger
// tables. Revenue counts only Received payments; cancelled ones drop out.
func (s *statisticsService) GetSummary(ctx context.Context) (StatisticsSummary, error) {
	var summary StatisticsSummary

	// Revenue received
	var revenue struct {
		Value decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Table("payments").
		Select("COALESCE(SUM(amount), 0) as value").
		Where("status = ?", model.PaymentStatusReceived).
		Scan(&revenue).Error; err != nil {
		return summary, err
	}
	summary.RevenueReceived = revenue.Value.StringFixed(2)

	// Receivables: unpaid remainder across open invoices
	var receivables struct {
		Value decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Table("invoices").
		Select("COALESCE(SUM(amount_due - amount_paid), 0) as value").
		Where("status <> ?", model.InvoiceStatusPaid).
		Scan(&receivables).Error; err != nil {
		return summary, err
	}
	summary.Receivables = receivables.Value.StringFixed(2)

	if err := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status <> ?", model.InvoiceStatusPaid).
		Count(&summary.OpenInvoices).Error; err != nil {
		return summary, err
	}

	// Outstanding debt across all customer accounts
	var debt struct {
		Value decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Table("users").
		Select("COALESCE(SUM(outstanding_balance), 0) as value").
		Where("deleted_at IS NULL").
		Scan(&debt).Error; err != nil {
		return summary, err
	}
	summary.OutstandingDebt = debt.Value.StringFixed(2)

	// Order counts by status
	var counts []StatusCount
	if err := s.db.WithContext(ctx).Table("orders").
		Select("status, COUNT(*) as count").
		Group("status").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return summary, err
	}
	summary.OrdersByStatus = counts

	// Top sold products across delivered orders
	var top []ProductSalesRanking
	if err := s.db.WithContext(ctx).Table("order_items").
		Select("order_items.product_id as product_id, order_items.name as product_name, SUM(order_items.qty) as total_quantity, SUM(order_items.qty * order_items.price) as total_value").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", model.OrderStatusDelivered).
		Group("order_items.product_id, order_items.name").
		Order("total_quantity DESC").
		Limit(5).
		Scan(&top).Error; err != nil {
		return summary, err
	}
	summary.TopSoldProducts = top

	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&summary.TotalUsers).Error; err != nil {
		return summary, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Count(&summary.TotalProducts).Error; err != nil {
		return summary, err
	}

	return summary, nil
}
