package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod enum constants
const (
	PaymentMethodCash         = "Cash"
	PaymentMethodBankTransfer = "Bank Transfer"
	PaymentMethodCreditCard   = "Credit Card"
	PaymentMethodCheque       = "Cheque"
	PaymentMethodOther        = "Other"
)

// PaymentStatus enum constants
const (
	PaymentStatusReceived  = "Received"
	PaymentStatusCancelled = "Cancelled"
)

// Payment records money received against an invoice. The owner's wallet is
// adjusted only when a payment's status transitions, never at creation.
type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice     *Invoice        `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method      string          `gorm:"type:varchar(30);not null" json:"method"` // Cash, Bank Transfer, Credit Card, Cheque, Other
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Note        string          `gorm:"type:text" json:"note"`
	Status      string          `gorm:"type:varchar(30);not null;default:'Received'" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ValidPaymentMethod reports whether m is one of the closed method set
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCreditCard,
		PaymentMethodCheque, PaymentMethodOther:
		return true
	}
	return false
}
