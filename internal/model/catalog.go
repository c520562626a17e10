package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductType enum constants
const (
	ProductTypeRibbon         = "Ribbon"
	ProductTypeCreasingMatrix = "Creasing Matrix"
	ProductTypeDoubleFaceTape = "Double Face Tape"
	ProductTypeOther          = "Other"
)

// Category groups products under a product type and carries the filter
// definitions the storefront uses for faceting. Filters have no behavioral
// impact on pricing or stock.
type Category struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string           `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	ProductType string           `gorm:"type:varchar(50);not null" json:"product_type"` // Ribbon, Creasing Matrix, Double Face Tape, Other
	Filters     []CategoryFilter `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"filters"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CategoryFilter defines one facet (key, display name, allowed values)
type CategoryFilter struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CategoryID  uuid.UUID `gorm:"type:uuid;not null;index" json:"category_id"`
	Key         string    `gorm:"type:varchar(100);not null" json:"key"`
	DisplayName string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Values      []string  `gorm:"serializer:json;type:text" json:"values"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (f *CategoryFilter) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Product represents a catalog item. Stock never goes below zero: deductions
// that would drive it negative are rejected whole.
type Product struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string            `gorm:"type:varchar(255);not null" json:"name"`
	CategoryID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"category_id"`
	Category    *Category         `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Image       string            `gorm:"type:text" json:"image"`
	Price       float64           `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int               `gorm:"type:int;not null;default:0" json:"stock"`
	MinOrderQty int               `gorm:"type:int;not null;default:1" json:"min_order_qty"`
	IsAvailable bool              `gorm:"default:true" json:"is_available"`
	Specs       map[string]string `gorm:"serializer:json;type:text" json:"specs"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
