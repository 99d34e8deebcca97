package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StudentFeeAssignment binds a student to a fee structure with a per-student discount.
type StudentFeeAssignment struct {
	ID              uuid.UUID             `gorm:"type:uuid;primary_key" json:"id"`
	TenantID        uuid.UUID             `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StudentID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_assignments_student_structure" json:"student_id"`
	StructureID     uuid.UUID             `gorm:"type:uuid;not null;index:idx_assignments_student_structure" json:"structure_id"`
	EffectiveFrom   time.Time             `gorm:"type:date;not null" json:"effective_from"`
	EffectiveTo     *time.Time            `gorm:"type:date" json:"effective_to,omitempty"`
	DiscountPercent decimal.Decimal       `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percent"`
	DiscountAmount  decimal.Decimal       `gorm:"type:numeric(14,2);not null;default:0" json:"discount_amount"`
	Status          enum.AssignmentStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedBy       uuid.UUID             `gorm:"type:uuid" json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`

	// Relationships
	Structure *FeeStructure `gorm:"foreignKey:StructureID" json:"structure,omitempty"`
}

// BeforeCreate generates a UUID before creating a new assignment
func (a *StudentFeeAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the StudentFeeAssignment model
func (StudentFeeAssignment) TableName() string {
	return "student_fee_assignments"
}

// ActiveOn reports whether the assignment is active and in effect on day.
func (a *StudentFeeAssignment) ActiveOn(day time.Time) bool {
	if a.Status != enum.AssignmentActive {
		return false
	}
	if day.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || !day.After(*a.EffectiveTo)
}
