package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus constants
const (
	OrderStatusPending    = "Pending"
	OrderStatusQuoted     = "Quoted"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// ShippingAddress is the address snapshot embedded on each order
type ShippingAddress struct {
	Address string `gorm:"type:text" json:"address"`
	City    string `gorm:"type:varchar(100)" json:"city"`
	Country string `gorm:"type:varchar(100)" json:"country"`
	Phone   string `gorm:"type:varchar(20)" json:"phone"`
}

// Order represents a placed order. TotalPrice equals
// sum(item.price * item.qty) + DeliveryCharge + ExtraFee whenever an admin
// repricing runs; at creation the caller-supplied subtotal is trusted.
// StockUpdated guards deduction idempotency, IsAttachedToDebt marks whether
// TotalPrice currently counts toward the owner's outstanding balance.
type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Shipping         ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	TotalPrice       float64         `gorm:"type:decimal(12,2);not null;default:0" json:"total_price"`
	DeliveryCharge   float64         `gorm:"type:decimal(10,2);not null;default:0" json:"delivery_charge"`
	ExtraFee         float64         `gorm:"type:decimal(10,2);not null;default:0" json:"extra_fee"`
	Status           string          `gorm:"type:varchar(50);not null;default:'Pending'" json:"status"`
	IsPaid           bool            `gorm:"default:false" json:"is_paid"`
	PaidAt           *time.Time      `json:"paid_at"`
	IsDelivered      bool            `gorm:"default:false" json:"is_delivered"`
	DeliveredAt      *time.Time      `json:"delivered_at"`
	SellerNote       string          `gorm:"type:text" json:"seller_note"`
	AdminNote        string          `gorm:"type:text" json:"admin_note"`
	IsAttachedToDebt bool            `gorm:"default:false" json:"is_attached_to_debt"`
	StockUpdated     bool            `gorm:"default:false" json:"stock_updated"`
	IsQuoted         bool            `gorm:"default:false" json:"is_quoted"`
	InvoiceGenerated bool            `gorm:"default:false" json:"invoice_generated"`
	QuoteID          *uuid.UUID      `gorm:"type:uuid;index" json:"quote_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a line item snapshot captured at order time
type OrderItem struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product          `gorm:"foreignKey:ProductID" json:"-"`
	Name      string            `gorm:"type:varchar(255);not null" json:"name"`
	Image     string            `gorm:"type:text" json:"image"`
	Price     float64           `gorm:"type:decimal(10,2);not null" json:"price"`
	Qty       int               `gorm:"type:int;not null" json:"qty"`
	Specs     map[string]string `gorm:"serializer:json;type:text" json:"specs"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// StockDirection enum constants
const (
	StockDirectionIn  = "IN"
	StockDirectionOut = "OUT"
)

// StockMovement records every stock change made on behalf of an order
type StockMovement struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Direction  string    `gorm:"type:varchar(10);not null" json:"direction"` // IN, OUT
	Quantity   int       `gorm:"type:int;not null" json:"quantity"`
	StockAfter int       `gorm:"type:int;not null" json:"stock_after"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
