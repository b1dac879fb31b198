// ============================================================================
// backend/internal/shared/config.go
// Configuration management (.env + environment, resolved through viper)
// ============================================================================

package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds the configuration for a markbook process
type ServiceConfig struct {
	ServiceName    string
	HTTPPort       string
	GRPCHealthPort string // empty disables the gRPC health server
	Environment    string // development, staging, production
	LogLevel       string // debug, info, warn, error

	Storage   StorageConfig
	MongoDB   MongoConfig
	Redis     RedisConfig
	Security  SecurityConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Seed      SeedConfig
}

// StorageConfig selects the persistence driver
type StorageConfig struct {
	Driver string // mongo, memory
}

// RedisConfig holds the token revocation store settings.
// An empty Addr disables revocation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret          string
	JWTIssuer          string
	JWTExpirationHours int
	BCryptCost         int // BCrypt hashing cost (10-12 recommended)
	CookieName         string
	CookieSecure       bool
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// RateLimitConfig throttles login attempts per client address
type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// SeedConfig holds the default accounts provisioned at start-up
type SeedConfig struct {
	AdminUsername   string
	AdminPassword   string
	TeacherUsername string
	TeacherPassword string
}

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// newViper returns a viper instance with every default registered.
// Keys are upper-case environment names so AutomaticEnv resolves them directly.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_HEALTH_PORT", "50051")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_DRIVER", StorageMongo)
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB_NAME", "markbook")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", 20*time.Second)
	v.SetDefault("MONGO_MAX_POOL_SIZE", 50)
	v.SetDefault("MONGO_MIN_POOL_SIZE", 5)
	v.SetDefault("MONGO_MAX_IDLE_TIME", 30*time.Second)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "markbook")
	v.SetDefault("JWT_EXPIRATION_HOURS", 24)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("AUTH_COOKIE_NAME", "token")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")
	v.SetDefault("CORS_ALLOWED_HEADERS", "Accept,Authorization,Content-Type")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE", 300)

	v.SetDefault("LOGIN_RATE_PER_MINUTE", 20)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	v.SetDefault("SEED_ADMIN_USERNAME", "admin")
	v.SetDefault("SEED_ADMIN_PASSWORD", "admin123")
	v.SetDefault("SEED_TEACHER_USERNAME", "teacher")
	v.SetDefault("SEED_TEACHER_PASSWORD", "teacher123")

	v.AutomaticEnv()
	return v
}

// LoadServiceConfig loads service configuration from the environment
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	v := newViper()

	config := &ServiceConfig{
		ServiceName:    serviceName,
		HTTPPort:       v.GetString("HTTP_PORT"),
		GRPCHealthPort: v.GetString("GRPC_HEALTH_PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}

	config.Storage = StorageConfig{
		Driver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
	}

	config.MongoDB = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DB_NAME"),
		ConnectTimeout: v.GetDuration("MONGO_CONNECT_TIMEOUT"),
		MaxPoolSize:    uint64(v.GetInt("MONGO_MAX_POOL_SIZE")),
		MinPoolSize:    uint64(v.GetInt("MONGO_MIN_POOL_SIZE")),
		MaxIdleTime:    v.GetDuration("MONGO_MAX_IDLE_TIME"),
	}

	config.Redis = RedisConfig{
		Addr:     v.GetString("REDIS_ADDR"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	config.Security = SecurityConfig{
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		JWTExpirationHours: v.GetInt("JWT_EXPIRATION_HOURS"),
		BCryptCost:         v.GetInt("BCRYPT_COST"),
		CookieName:         v.GetString("AUTH_COOKIE_NAME"),
		CookieSecure:       IsProduction(config),
	}
	// Secure cookies follow the environment unless set explicitly
	if v.IsSet("AUTH_COOKIE_SECURE") {
		config.Security.CookieSecure = v.GetBool("AUTH_COOKIE_SECURE")
	}

	config.CORS = CORSConfig{
		AllowedOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AllowedMethods:   splitList(v.GetString("CORS_ALLOWED_METHODS")),
		AllowedHeaders:   splitList(v.GetString("CORS_ALLOWED_HEADERS")),
		AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		MaxAge:           v.GetInt("CORS_MAX_AGE"),
	}

	config.RateLimit = RateLimitConfig{
		LoginPerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
		LoginBurst:     v.GetInt("LOGIN_RATE_BURST"),
	}

	config.Seed = SeedConfig{
		AdminUsername:   v.GetString("SEED_ADMIN_USERNAME"),
		AdminPassword:   v.GetString("SEED_ADMIN_PASSWORD"),
		TeacherUsername: v.GetString("SEED_TEACHER_USERNAME"),
		TeacherPassword: v.GetString("SEED_TEACHER_PASSWORD"),
	}

	if err := ValidateServiceConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// splitList splits a comma-separated list, dropping blank items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	switch config.Storage.Driver {
	case StorageMongo:
		if config.MongoDB.URI == "" {
			return fmt.Errorf("MONGO_URI environment variable is required for the mongo storage driver")
		}
		if config.MongoDB.Database == "" {
			return fmt.Errorf("MongoDB database name is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if config.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if config.Security.JWTExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1")
	}
	if config.Security.BCryptCost < 4 || config.Security.BCryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	return nil
}

// ============================================================================
// Environment Helpers
// ============================================================================

// IsDevelopment checks if running in development environment
func IsDevelopment(config *ServiceConfig) bool {
	return config.Environment == "development"
}

// IsProduction checks if running in production environment
func IsProduction(config *ServiceConfig) bool {
	return config.Environment == "production"
}

// TokenLifetime is the validity window of an issued credential
func (c SecurityConfig) TokenLifetime() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// PrintConfig logs configuration (sanitized) for debugging
func PrintConfig(logger zerolog.Logger, config *ServiceConfig) {
	logger.Info().
		Str("service", config.ServiceName).
		Str("http_port", config.HTTPPort).
		Str("grpc_health_port", config.GRPCHealthPort).
		Str("environment", config.Environment).
		Str("log_level", config.LogLevel).
		Str("storage", config.Storage.Driver).
		Str("mongo_db", config.MongoDB.Database).
		Uint64("mongo_max_pool", config.MongoDB.MaxPoolSize).
		Bool("revocation", config.Redis.Addr != "").
		Int("jwt_expiration_hours", config.Security.JWTExpirationHours).
		Int("bcrypt_cost", config.Security.BCryptCost).
		Strs("cors_origins", config.CORS.AllowedOrigins).
		Msg("service configuration")
}
