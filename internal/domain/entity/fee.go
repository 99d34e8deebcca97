package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeeCategory groups fee items (tuition, transport, boarding...). It becomes
// immutable once a fee item references it.
type FeeCategory struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_fee_categories_tenant_code" json:"tenant_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Code       string    `gorm:"size:50;not null;uniqueIndex:idx_fee_categories_tenant_code" json:"code"`
	Mandatory  bool      `gorm:"not null;default:true" json:"mandatory"`
	Refundable bool      `gorm:"not null;default:false" json:"refundable"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new category
func (c *FeeCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the FeeCategory model
func (FeeCategory) TableName() string {
	return "fee_categories"
}

// FeeStructure is a grade/year scoped template of fee items.
type FeeStructure struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	TenantID      uuid.UUID                   `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name          string                      `gorm:"size:255;not null" json:"name"`
	AcademicYear  string                      `gorm:"size:20;not null" json:"academic_year"`
	GradeLevels   datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"grade_levels"`
	EffectiveFrom time.Time                   `gorm:"type:date;not null" json:"effective_from"`
	EffectiveTo   *time.Time                  `gorm:"type:date" json:"effective_to,omitempty"`
	Status        enum.FeeStructureStatus     `gorm:"size:20;not null;default:'draft'" json:"status"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`

	// Relationships
	Items []FeeItem `gorm:"foreignKey:StructureID" json:"items,omitempty"`
}

// BeforeCreate generates a UUID before creating a new structure
func (s *FeeStructure) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the FeeStructure model
func (FeeStructure) TableName() string {
	return "fee_structures"
}

// FeeItem is a priced component of a structure together with its collection policy.
type FeeItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StructureID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"structure_id"`
	CategoryID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	BaseAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	Frequency        enum.Frequency  `gorm:"size:20;not null" json:"frequency"`
	MaxInstallments  int             `gorm:"not null;default:1" json:"max_installments"`
	LateFeeAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"late_fee_amount"`
	GraceDays        int             `gorm:"not null;default:0" json:"grace_days"`
	DailyPenaltyRate decimal.Decimal `gorm:"type:numeric(9,6);not null;default:0" json:"daily_penalty_rate"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Relationships
	Category *FeeCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BeforeCreate generates a UUID before creating a new fee item
func (i *FeeItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the FeeItem model
func (FeeItem) TableName() string {
	return "fee_items"
}
