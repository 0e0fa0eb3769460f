package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OTEL      OTELConfig
	Locations LocationsConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int

	// KeyPrefix namespaces every cache key written by this service
	KeyPrefix string
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LocationsConfig holds location hierarchy settings
type LocationsConfig struct {
	// CacheTTLSeconds is how long the loaded collection stays in Redis
	CacheTTLSeconds int
	// CurrentLocationTTLSeconds is how long a user's selected location is remembered (0 = forever)
	CurrentLocationTTLSeconds int
	// CacheWarmIntervalSeconds re-warms the collection cache periodically (0 = warm once at startup)
	CacheWarmIntervalSeconds int
	// MaxTreeDepth bounds member tree recursion
	MaxTreeDepth int
	// StrictAttributes rejects non-numeric "Patients per bed" values instead of defaulting to 1
	StrictAttributes bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "location_hierarchy"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnvAsInt("REDIS_PORT", 6379),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			PoolSize:  getEnvAsInt("REDIS_POOL_SIZE", 10),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "locations:"),
		},
		Typesense: TypesenseConfig{
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", true),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "location-hierarchy"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Locations: LocationsConfig{
			CacheTTLSeconds:           getEnvAsInt("LOCATIONS_CACHE_TTL_SECONDS", 300),
			CurrentLocationTTLSeconds: getEnvAsInt("CURRENT_LOCATION_TTL_SECONDS", 0),
			CacheWarmIntervalSeconds:  getEnvAsInt("LOCATIONS_CACHE_WARM_INTERVAL_SECONDS", 0),
			MaxTreeDepth:              getEnvAsInt("LOCATIONS_MAX_TREE_DEPTH", 64),
			StrictAttributes:          getEnvAsBool("LOCATIONS_STRICT_ATTRIBUTES", false),
		},
	}

	if err := cfg.Locations.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *LocationsConfig) validate() error {
	if c.MaxTreeDepth <= 0 {
		return fmt.Errorf("LOCATIONS_MAX_TREE_DEPTH must be positive, got %d", c.MaxTreeDepth)
	}
	if c.CacheTTLSeconds < 0 || c.CurrentLocationTTLSeconds < 0 || c.CacheWarmIntervalSeconds < 0 {
		return fmt.Errorf("location cache durations must not be negative")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
