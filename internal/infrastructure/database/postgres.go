package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig, log *zap.Logger, debug bool) (*gorm.DB, error) {
	level := gormLogger.Warn
	if debug {
		level = gormLogger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: NewGormLogger(log).LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	log.Info("connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities. Versioned SQL
// migrations are the default; this is kept for throwaway development databases.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running GORM auto-migration")

	err := db.AutoMigrate(
		// Fee catalog
		&entity.FeeCategory{},
		&entity.FeeStructure{},
		&entity.FeeItem{},
		&entity.StudentFeeAssignment{},

		// Billing
		&entity.Invoice{},
		&entity.InvoiceLineItem{},
		&entity.PaymentMethod{},
		&entity.Payment{},
		&entity.PaymentAllocation{},
		&entity.Refund{},
		&entity.RefundAdjustment{},
		&entity.PaymentPlan{},
		&entity.Installment{},

		// System
		&entity.FinancialSummary{},
		&entity.Sequence{},
		&entity.DomainEvent{},
		&entity.IdempotencyKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("auto-migration completed")
	return nil
}

// SeedPaymentMethods creates the standard payment methods for a tenant if they
// do not exist yet.
func SeedPaymentMethods(db *gorm.DB, log *zap.Logger, tenantID uuid.UUID) error {
	methods := []entity.PaymentMethod{
		{Code: "CASH", Name: "Cash", Channel: enum.ChannelCash},
		{Code: "BANK", Name: "Bank Transfer", Channel: enum.ChannelBankTransfer},
		{Code: "CARD", Name: "Card", Channel: enum.ChannelCard},
		{Code: "MOBILE", Name: "Mobile Money", Channel: enum.ChannelMobileMoney},
		{Code: "GATEWAY", Name: "Online Gateway", Channel: enum.ChannelGateway},
	}

	for i := range methods {
		methods[i].TenantID = tenantID
		methods[i].Active = true

		var existing entity.PaymentMethod
		err := db.Where("tenant_id = ? AND code = ?", tenantID, methods[i].Code).First(&existing).Error
		if err == nil {
			continue
		}
		if err := db.Create(&methods[i]).Error; err != nil {
			log.Warn("failed to seed payment method", zap.String("code", methods[i].Code), zap.Error(err))
		}
	}

	log.Info("payment methods seeded", zap.String("tenant_id", tenantID.String()))
	return nil
}
