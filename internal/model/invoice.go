package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusUnpaid        = "Unpaid"
	InvoiceStatusPartiallyPaid = "Partially Paid"
	InvoiceStatusPaid          = "Paid"
	InvoiceStatusOverdue       = "Overdue"
)

// Invoice is the billing document derived from exactly one order. The unique
// index on OrderID enforces one-invoice-per-order, the one on InvoiceNo backs
// the monotonic INV-NNNNN numbering under concurrent creates.
type Invoice struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNo  string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	OrderID    uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	Order      *Order          `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	UserID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AmountDue  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_due"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_paid"`
	DueDate    time.Time       `gorm:"not null" json:"due_date"`
	Status     string          `gorm:"type:varchar(50);not null;default:'Unpaid'" json:"status"`
	AdminNote  string          `gorm:"type:text" json:"admin_note"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// DeriveStatus recomputes the paid-state from AmountPaid vs AmountDue.
// Overdue is an admin-set state and is left alone while the invoice is
// not fully paid.
func (i *Invoice) DeriveStatus() {
	switch {
	case i.AmountPaid.GreaterThanOrEqual(i.AmountDue) && i.AmountDue.IsPositive():
		i.Status = InvoiceStatusPaid
	case i.AmountPaid.IsPositive():
		i.Status = InvoiceStatusPartiallyPaid
	case i.Status != InvoiceStatusOverdue:
		i.Status = InvoiceStatusUnpaid
	}
}
