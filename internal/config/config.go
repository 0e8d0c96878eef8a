package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Storage    StorageConfig
	Attendance AttendanceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// StorageConfig holds punch photo storage configuration
type StorageConfig struct {
	BasePath string
	BaseURL  string
}

// AttendanceConfig holds the attendance policy knobs. Per-workplace settings
// in the database override the geofence enforcement default.
type AttendanceConfig struct {
	// StandardShiftMinutes is the overtime threshold when a user has no shift assigned.
	StandardShiftMinutes int
	// BreakDailyCapMinutes is the soft cap on total break time per day.
	BreakDailyCapMinutes int
	// MinSessionMinutes flags sessions shorter than this for review.
	MinSessionMinutes int
	// MaxSessionMinutes flags sessions longer than this for review.
	MaxSessionMinutes int
	// MaxPunchSpeedMPS is the implied-travel-speed ceiling between consecutive punches.
	MaxPunchSpeedMPS float64
	// MinPlausibleAccuracyMeters rejects GPS fixes claiming better accuracy than this.
	MinPlausibleAccuracyMeters float64
	// LockWait bounds how long a punch waits on the per-user lock before giving up.
	LockWait time.Duration
	// EnforceGeofence rejects out-of-zone punches instead of flagging them.
	EnforceGeofence bool
	// AutoCloseAfter closes sessions still open this long past shift end.
	AutoCloseAfter time.Duration
	// ApprovalEscalationAfter marks pending approvals overdue after this duration.
	ApprovalEscalationAfter time.Duration
	// AutoApproveManagers resolves manager and admin submissions immediately.
	AutoApproveManagers bool
}

func Load() (*Config, error) {
	// .env is optional, deployments set real environment variables
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Storage configuration
	config.Storage = StorageConfig{
		BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/uploads"),
	}

	// Attendance policy configuration
	standardShift, err := getEnvInt("STANDARD_SHIFT_MINUTES", 480)
	if err != nil {
		return nil, err
	}
	breakCap, err := getEnvInt("BREAK_DAILY_CAP_MINUTES", 90)
	if err != nil {
		return nil, err
	}
	minSession, err := getEnvInt("MIN_SESSION_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	maxSession, err := getEnvInt("MAX_SESSION_MINUTES", 960)
	if err != nil {
		return nil, err
	}
	maxSpeed, err := getEnvFloat("MAX_PUNCH_SPEED_MPS", 50)
	if err != nil {
		return nil, err
	}
	minAccuracy, err := getEnvFloat("MIN_PLAUSIBLE_ACCURACY_METERS", 1)
	if err != nil {
		return nil, err
	}
	lockWait, err := getEnvDuration("PUNCH_LOCK_WAIT", 3*time.Second)
	if err != nil {
		return nil, err
	}
	enforceGeofence, err := getEnvBool("ENFORCE_GEOFENCE", false)
	if err != nil {
		return nil, err
	}
	autoClose, err := getEnvDuration("AUTO_CLOSE_AFTER", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	escalation, err := getEnvDuration("APPROVAL_ESCALATION_AFTER", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	autoApprove, err := getEnvBool("AUTO_APPROVE_MANAGERS", true)
	if err != nil {
		return nil, err
	}

	config.Attendance = AttendanceConfig{
		StandardShiftMinutes:       standardShift,
		BreakDailyCapMinutes:       breakCap,
		MinSessionMinutes:          minSession,
		MaxSessionMinutes:          maxSession,
		MaxPunchSpeedMPS:           maxSpeed,
		MinPlausibleAccuracyMeters: minAccuracy,
		LockWait:                   lockWait,
		EnforceGeofence:            enforceGeofence,
		AutoCloseAfter:             autoClose,
		ApprovalEscalationAfter:    escalation,
		AutoApproveManagers:        autoApprove,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Attendance.StandardShiftMinutes <= 0 {
		return fmt.Errorf("STANDARD_SHIFT_MINUTES must be positive")
	}
	if c.Attendance.MinSessionMinutes < 0 {
		return fmt.Errorf("MIN_SESSION_MINUTES must not be negative")
	}
	if c.Attendance.MaxSessionMinutes <= c.Attendance.MinSessionMinutes {
		return fmt.Errorf("MAX_SESSION_MINUTES must exceed MIN_SESSION_MINUTES")
	}
	if c.Attendance.MaxPunchSpeedMPS <= 0 {
		return fmt.Errorf("MAX_PUNCH_SPEED_MPS must be positive")
	}
	if c.Attendance.LockWait <= 0 {
		return fmt.Errorf("PUNCH_LOCK_WAIT must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
