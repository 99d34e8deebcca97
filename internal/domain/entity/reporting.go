package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinancialSummary is a derived rollup for reporting. It can always be thrown
// away and rebuilt from invoices and payments.
type FinancialSummary struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	TenantID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_summaries_period" json:"tenant_id"`
	PeriodType       enum.SummaryPeriod `gorm:"size:20;not null;uniqueIndex:idx_summaries_period" json:"period_type"`
	PeriodDate       time.Time          `gorm:"type:date;not null;uniqueIndex:idx_summaries_period" json:"period_date"`
	TotalInvoiced    decimal.Decimal    `gorm:"type:numeric(16,2);not null;default:0" json:"total_invoiced"`
	TotalCollected   decimal.Decimal    `gorm:"type:numeric(16,2);not null;default:0" json:"total_collected"`
	TotalRefunded    decimal.Decimal    `gorm:"type:numeric(16,2);not null;default:0" json:"total_refunded"`
	TotalOutstanding decimal.Decimal    `gorm:"type:numeric(16,2);not null;default:0" json:"total_outstanding"`
	CollectionRate   decimal.Decimal    `gorm:"type:numeric(7,2);not null;default:0" json:"collection_rate"`
	InvoiceCount     int                `gorm:"not null;default:0" json:"invoice_count"`
	PaymentCount     int                `gorm:"not null;default:0" json:"payment_count"`
	GeneratedAt      time.Time          `gorm:"not null" json:"generated_at"`
}

// BeforeCreate generates a UUID before creating a new summary
func (s *FinancialSummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the FinancialSummary model
func (FinancialSummary) TableName() string {
	return "financial_summaries"
}

// Sequence is a per-tenant monotonically increasing counter.
type Sequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:100;primaryKey"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName returns the table name for the Sequence model
func (Sequence) TableName() string {
	return "tenant_sequences"
}

// DomainEvent is an outbox row awaiting delivery by the notification collaborator.
type DomainEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_domain_events_feed" json:"tenant_id"`
	Type          enum.EventType `gorm:"size:50;not null" json:"type"`
	AggregateType string         `gorm:"size:50;not null" json:"aggregate_type"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	CreatedAt     time.Time      `gorm:"index:idx_domain_events_feed" json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new event
func (e *DomainEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the DomainEvent model
func (DomainEvent) TableName() string {
	return "domain_events"
}
