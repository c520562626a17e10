package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuoteStatus constants. The flow is Requested -> Quoted -> Confirmed/Rejected;
// Confirmed and Rejected are terminal except for an explicit admin override.
const (
	QuoteStatusRequested = "Requested"
	QuoteStatusQuoted    = "Quoted"
	QuoteStatusConfirmed = "Confirmed"
	QuoteStatusRejected  = "Rejected"
)

// Quote is a pre-order price negotiation. Pricing fields are stored as soon
// as an admin assigns them but are withheld from the owner's view while the
// status is still Requested; sanitization happens at read time.
type Quote struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items          []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`
	DeliveryCharge float64     `gorm:"type:decimal(10,2);not null;default:0" json:"delivery_charge"`
	ExtraFee       float64     `gorm:"type:decimal(10,2);not null;default:0" json:"extra_fee"`
	TotalPrice     float64     `gorm:"type:decimal(12,2);not null;default:0" json:"total_price"`
	Status         string      `gorm:"type:varchar(50);not null;default:'Requested'" json:"status"`
	AdminNote      string      `gorm:"type:text" json:"admin_note"`
	ClientNote     string      `gorm:"type:text" json:"client_note"`
	IsOrderCreated bool        `gorm:"default:false" json:"is_order_created"`
	OrderID        *uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// QuoteItem is a requested line: the client supplies product and qty, the
// admin fills in the unit price while quoting.
type QuoteItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuoteID   uuid.UUID `gorm:"type:uuid;not null;index" json:"quote_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Qty       int       `gorm:"type:int;not null" json:"qty"`
	UnitPrice float64   `gorm:"type:decimal(10,2);not null;default:0" json:"unit_price"`
}

func (i *QuoteItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
