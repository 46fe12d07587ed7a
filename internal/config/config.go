package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"coachpay/internal/domain"
	"coachpay/internal/pricing"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Log        LogConfig
	Fees       pricing.FeeConfig
	Settlement SettlementConfig
	Stripe     StripeConfig
	Kafka      KafkaConfig
	Audit      AuditConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PublicBaseURL is where buyers are sent back to after checkout.
	PublicBaseURL string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MigrationsAutoApply runs the embedded migrations on startup.
	MigrationsAutoApply bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Format string // json or text
}

// SettlementConfig holds the transfer executor and sweep settings.
type SettlementConfig struct {
	MaxAttempts      int
	SweepSchedule    string // cron spec, e.g. "@every 5m"
	SweepBatch       int
	SweepLockTTL     time.Duration
	ClaimLease       time.Duration
	ProcessorTimeout time.Duration
}

// StripeConfig holds processor credentials. An empty SecretKey selects the in-memory processor.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	RefreshURL    string
	ReturnURL     string
	RatePerSecond float64
	BackendURL    string
}

// KafkaConfig holds the audit fan-out settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// AuditConfig holds the audit sink settings.
type AuditConfig struct {
	QueueSize int
}

// Load loads configuration from environment variables, after applying a .env
// file from the working directory if one exists. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	fees, err := loadFees()
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			ReadTimeout:   getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			PublicBaseURL: baseURL,
		},
		Database: DatabaseConfig{
			Host:                getEnv("DB_HOST", "localhost"),
			Port:                getEnv("DB_PORT", "5432"),
			User:                getEnv("DB_USER", "postgres"),
			Password:            getEnv("DB_PASSWORD", "postgres"),
			DBName:              getEnv("DB_NAME", "coachpay"),
			SSLMode:             getEnv("DB_SSLMODE", "disable"),
			MigrationsAutoApply: getBoolEnv("DB_MIGRATE_ON_START", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "coachpay-settlement"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Fees: fees,
		Settlement: SettlementConfig{
			MaxAttempts:      getIntEnv("SETTLEMENT_MAX_ATTEMPTS", 5),
			SweepSchedule:    getEnv("SETTLEMENT_SWEEP_SCHEDULE", "@every 5m"),
			SweepBatch:       getIntEnv("SETTLEMENT_SWEEP_BATCH", 100),
			SweepLockTTL:     getDurationEnv("SETTLEMENT_SWEEP_LOCK_TTL", 4*time.Minute),
			ClaimLease:       getDurationEnv("SETTLEMENT_CLAIM_LEASE", 15*time.Minute),
			ProcessorTimeout: getDurationEnv("PROCESSOR_TIMEOUT", 15*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", "whsec_local"),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", baseURL+"/v1/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", baseURL+"/checkout/cancelled"),
			RefreshURL:    getEnv("ONBOARDING_REFRESH_URL", baseURL+"/onboarding/refresh"),
			ReturnURL:     getEnv("ONBOARDING_RETURN_URL", baseURL+"/onboarding/done"),
			RatePerSecond: getFloatEnv("PROCESSOR_RATE_PER_SECOND", 20),
			BackendURL:    getEnv("STRIPE_BACKEND_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnv("KAFKA_BROKERS", ""),
			AuditTopic: getEnv("AUDIT_TOPIC", "coachpay.anomalies"),
		},
		Audit: AuditConfig{
			QueueSize: getIntEnv("AUDIT_QUEUE_SIZE", 1024),
		},
	}

	if cfg.Settlement.MaxAttempts < 1 {
		return nil, fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be at least 1, got %d", cfg.Settlement.MaxAttempts)
	}
	if cfg.Settlement.SweepBatch < 1 {
		return nil, fmt.Errorf("SETTLEMENT_SWEEP_BATCH must be at least 1, got %d", cfg.Settlement.SweepBatch)
	}
	return cfg, nil
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// loadFees reads the fee configuration. Malformed fee settings are an error, never a default.
func loadFees() (pricing.FeeConfig, error) {
	cfg := pricing.DefaultFeeConfig()

	var err error
	if cfg.ProcessorPercentPPM, err = getPercentEnv("PROCESSOR_FEE_PERCENT", cfg.ProcessorPercentPPM); err != nil {
		return cfg, err
	}
	if cfg.ProcessorFixedCents, err = getCentsEnv("PROCESSOR_FEE_FIXED_CENTS", cfg.ProcessorFixedCents); err != nil {
		return cfg, err
	}
	if cfg.PlatformSinglePercentPPM, err = getPercentEnv("PLATFORM_SINGLE_PERCENT", cfg.PlatformSinglePercentPPM); err != nil {
		return cfg, err
	}
	if cfg.PlatformPackFixedCents, err = getCentsEnv("PLATFORM_PACK_FIXED_CENTS", cfg.PlatformPackFixedCents); err != nil {
		return cfg, err
	}
	if cfg.PlatformPackPercentPPM, err = getPercentEnv("PLATFORM_PACK_PERCENT", cfg.PlatformPackPercentPPM); err != nil {
		return cfg, err
	}

	cfg.ProcessorFeeBasis = pricing.FeeBasis(strings.ToUpper(getEnv("PROCESSOR_FEE_BASIS", string(cfg.ProcessorFeeBasis))))
	cfg.AbsorbProcessorFee = getBoolEnv("PLATFORM_ABSORBS_PROCESSOR_FEE", cfg.AbsorbProcessorFee)
	cfg.Rounding = domain.RoundingMode(strings.ToUpper(getEnv("FEE_ROUNDING_MODE", string(cfg.Rounding))))
	cfg.Currency = strings.ToUpper(getEnv("DEFAULT_CURRENCY", cfg.Currency))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParsePercent converts a decimal percentage such as "1.5" into parts per million.
// Precision finer than one ppm (0.0001%) is rejected.
func ParsePercent(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("%w: percent %q", pricing.ErrInvalidFeeConfig, s)
	}
	ppm := d.Mul(decimal.NewFromInt(pricing.PPM / 100))
	if !ppm.Equal(ppm.Truncate(0)) {
		return 0, fmt.Errorf("%w: percent %q finer than 0.0001%%", pricing.ErrInvalidFeeConfig, s)
	}
	if ppm.IsNegative() || ppm.GreaterThan(decimal.NewFromInt(pricing.PPM)) {
		return 0, fmt.Errorf("%w: percent %q out of range", pricing.ErrInvalidFeeConfig, s)
	}
	return ppm.IntPart(), nil
}

func getPercentEnv(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	ppm, err := ParsePercent(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return ppm, nil
}

func getCentsEnv(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	cents, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || cents < 0 {
		return 0, fmt.Errorf("%s: %w: cents %q", key, pricing.ErrInvalidFeeConfig, value)
	}
	return cents, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
