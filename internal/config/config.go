package config

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Gateway   GatewayConfig
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	Driver        string // postgres or memory
	Host          string
	Port          string
	Name          string
	User          string
	Password      string
	SSLMode       string
	Timezone      string
	RunMigrations bool
	AutoMigrate   bool
	MaxOpenConns  int
	MaxIdleConns  int
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	ExpiryHours time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

// BillingConfig holds the knobs of the finance core.
type BillingConfig struct {
	Currency         string
	DisplayCurrency  string
	DisplayRate      decimal.Decimal
	Timezone         string
	SequenceWidth    int
	LockTimeout      time.Duration
	LockRetries      int
	SweepInterval    time.Duration
	SweepConcurrency int
	SummaryHour      int
}

type GatewayConfig struct {
	MidtransServerKey  string
	MidtransProduction bool
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "bursar-api")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "bursar")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "UTC")
	viper.SetDefault("DB_RUN_MIGRATIONS", true)
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 50)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_ISSUER", "bursar-identity")
	viper.SetDefault("JWT_EXPIRY_HOURS", 24)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("BILLING_CURRENCY", "KES")
	viper.SetDefault("BILLING_DISPLAY_CURRENCY", "KES")
	viper.SetDefault("BILLING_DISPLAY_RATE", "1")
	viper.SetDefault("BILLING_TIMEZONE", "Africa/Nairobi")
	viper.SetDefault("BILLING_SEQUENCE_WIDTH", 6)
	viper.SetDefault("BILLING_LOCK_TIMEOUT", "5s")
	viper.SetDefault("BILLING_LOCK_RETRIES", 3)
	viper.SetDefault("BILLING_SWEEP_INTERVAL", "1h")
	viper.SetDefault("BILLING_SWEEP_CONCURRENCY", 4)
	viper.SetDefault("BILLING_SUMMARY_HOUR", 1)
	viper.SetDefault("MIDTRANS_PRODUCTION", false)

	displayRate, err := decimal.NewFromString(viper.GetString("BILLING_DISPLAY_RATE"))
	if err != nil || !displayRate.IsPositive() {
		log.Printf("Warning: invalid BILLING_DISPLAY_RATE %q, using 1", viper.GetString("BILLING_DISPLAY_RATE"))
		displayRate = decimal.NewFromInt(1)
	}

	return &Config{
		App: AppConfig{
			Name:  viper.GetString("APP_NAME"),
			Env:   viper.GetString("APP_ENV"),
			Port:  viper.GetString("APP_PORT"),
			Debug: viper.GetBool("APP_DEBUG"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Driver:        viper.GetString("STORAGE_DRIVER"),
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			Name:          viper.GetString("DB_NAME"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			SSLMode:       viper.GetString("DB_SSL_MODE"),
			Timezone:      viper.GetString("DB_TIMEZONE"),
			RunMigrations: viper.GetBool("DB_RUN_MIGRATIONS"),
			AutoMigrate:   viper.GetBool("DB_AUTO_MIGRATE"),
			MaxOpenConns:  viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:  viper.GetInt("DB_MAX_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret:      viper.GetString("JWT_SECRET"),
			Issuer:      viper.GetString("JWT_ISSUER"),
			ExpiryHours: time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Billing: BillingConfig{
			Currency:         viper.GetString("BILLING_CURRENCY"),
			DisplayCurrency:  viper.GetString("BILLING_DISPLAY_CURRENCY"),
			DisplayRate:      displayRate,
			Timezone:         viper.GetString("BILLING_TIMEZONE"),
			SequenceWidth:    viper.GetInt("BILLING_SEQUENCE_WIDTH"),
			LockTimeout:      viper.GetDuration("BILLING_LOCK_TIMEOUT"),
			LockRetries:      viper.GetInt("BILLING_LOCK_RETRIES"),
			SweepInterval:    viper.GetDuration("BILLING_SWEEP_INTERVAL"),
			SweepConcurrency: viper.GetInt("BILLING_SWEEP_CONCURRENCY"),
			SummaryHour:      viper.GetInt("BILLING_SUMMARY_HOUR"),
		},
		Gateway: GatewayConfig{
			MidtransServerKey:  viper.GetString("MIDTRANS_SERVER_KEY"),
			MidtransProduction: viper.GetBool("MIDTRANS_PRODUCTION"),
		},
	}
}

// Location resolves the billing timezone, falling back to UTC.
func (c *BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// URL returns the connection string in the URL form golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password +
		"@" + c.Host + ":" + c.Port + "/" + c.Name +
		"?sslmode=" + c.SSLMode
}
