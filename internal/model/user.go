package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Role enum constants
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User represents a storefront account. WalletBalance and OutstandingBalance
// are ledger fields: they are mutated exclusively by the payment and order
// services, never written directly from a request body.
type User struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Username           string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email              string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone              string          `gorm:"type:varchar(20)" json:"phone"`
	Password           string          `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role               string          `gorm:"type:varchar(50);not null;default:'customer'" json:"role"`
	Address            string          `gorm:"type:text" json:"address"`
	City               string          `gorm:"type:varchar(100)" json:"city"`
	Country            string          `gorm:"type:varchar(100)" json:"country"`
	WalletBalance      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"wallet_balance"`
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"outstanding_balance"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"` // GORM soft delete
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the account holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
