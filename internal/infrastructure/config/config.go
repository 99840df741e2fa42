package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Environment tags accepted by ENVIRONMENT
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// placeholderSecrets are values shipped in example files that must never
// reach production
var placeholderSecrets = map[string]bool{
	"":                     true,
	"your-secret-key-here": true,
	"changeme":             true,
	"change-me":            true,
}

// configFiles are the .env files read by InitConfig, least specific first
var configFiles []string

// Config represents the application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Data      DataConfig
	Log       LogConfig
	Cache     CacheConfig
}

// AppConfig represents API metadata and routing prefixes
type AppConfig struct {
	ProjectName string
	Version     string
	Description string
	APIV1Str    string // Prefix of the versioned API (e.g., "/api/v1")
	DocsURL     string
	OpenAPIURL  string
	BaseURL     string
	Environment string // development, staging or production
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string
	Port           int
	GRPCPort       int // Port for the gRPC health service
	MetricsPort    int // Port for Prometheus metrics HTTP server
	WebConcurrency int // Multiplier for the number of in-flight request handlers
	DevReload      bool
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxInFlight returns the number of requests served concurrently
func (s *ServerConfig) MaxInFlight() int {
	n := s.WebConcurrency
	if n < 1 {
		n = 1
	}
	return n * 64
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string // postgres://..., postgresql://... or sqlite:///path
}

// SecurityConfig represents token signing configuration
type SecurityConfig struct {
	SecretKey                string
	Algorithm                string
	AccessTokenExpireMinutes int
}

// CORSConfig represents cross-origin configuration
type CORSConfig struct {
	Origins []string
}

// RateLimitConfig represents per-client rate limiting
type RateLimitConfig struct {
	PerMinute int
	RedisURL  string // Shared counters across replicas when set
}

// DataConfig lists the JSON files used to seed the catalog
type DataConfig struct {
	RelationshipsFile string
	DistributionsFile string
	ProbabilitiesFile string
	XInheritanceFile  string
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string // DEBUG, INFO, WARNING, ERROR, CRITICAL
	File  string // Optional file sink in addition to stdout
}

// CacheConfig represents catalog cache configuration
type CacheConfig struct {
	Enabled        bool
	MaxMemoryBytes int64 // Maximum memory usage in bytes (e.g., 10485760 = 10MB)
	Metrics        bool
	TTLMinutes     int // Time-to-live for cache entries in minutes
}

// FindProjectRoot finds the project root directory by looking for go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration.
// env: environment name (dev, test, prod). Values are read from .env, then
// .env.{env}, then environment variables, each overriding the previous.
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Deployed binaries run without go.mod; fall back to the working directory
	projectRoot, err := FindProjectRoot()
	if err != nil {
		if projectRoot, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to find project root: %w", err)
		}
	}

	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Config files are optional, ignore errors if not found
	configFiles = nil
	viper.SetConfigName(".env")
	if err := viper.ReadInConfig(); err == nil {
		configFiles = append(configFiles, viper.ConfigFileUsed())
	}
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	if err := viper.MergeInConfig(); err == nil {
		configFiles = append(configFiles, viper.ConfigFileUsed())
	}

	// Environment variables take precedence over config files
	viper.AutomaticEnv()

	// API defaults
	viper.SetDefault("PROJECT_NAME", "Relationship Calculator API")
	viper.SetDefault("VERSION", "0.1.0")
	viper.SetDefault("DESCRIPTION", "API for calculating genetic relationships and shared DNA")
	viper.SetDefault("API_V1_STR", "/api/v1")
	viper.SetDefault("DOCS_URL", "/docs")
	viper.SetDefault("OPENAPI_URL", "/openapi.json")
	viper.SetDefault("API_BASE_URL", "http://localhost:8000")
	viper.SetDefault("ENVIRONMENT", EnvDevelopment)

	// Server defaults
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("GRPC_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("WEB_CONCURRENCY", 1)
	viper.SetDefault("DEV_RELOAD", false)

	viper.SetDefault("DATABASE_URL", "sqlite:///./sql_app.db")

	// Security defaults
	viper.SetDefault("SECRET_KEY", "your-secret-key-here")
	viper.SetDefault("ALGORITHM", "HS256")
	viper.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)

	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("REDIS_URL", "")

	// Data file defaults
	viper.SetDefault("RELATIONSHIPS_FILE", "data/relationships.json")
	viper.SetDefault("DISTRIBUTIONS_FILE", "data/distribuciones.json")
	viper.SetDefault("PROBABILITIES_FILE", "data/probabilidades.json")
	viper.SetDefault("X_INHERITANCE_FILE", "data/xInheritance.json")

	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("LOG_FILE", "")

	// Cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_MEMORY_BYTES", 10*1024*1024) // 10MB
	viper.SetDefault("CACHE_METRICS", true)
	viper.SetDefault("CACHE_TTL_MINUTES", 5) // 5 minutes TTL

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	origins, err := ParseOrigins(viper.GetString("CORS_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("invalid CORS_ORIGINS: %w", err)
	}

	config := &Config{
		App: AppConfig{
			ProjectName: viper.GetString("PROJECT_NAME"),
			Version:     viper.GetString("VERSION"),
			Description: viper.GetString("DESCRIPTION"),
			APIV1Str:    strings.TrimRight(viper.GetString("API_V1_STR"), "/"),
			DocsURL:     viper.GetString("DOCS_URL"),
			OpenAPIURL:  viper.GetString("OPENAPI_URL"),
			BaseURL:     viper.GetString("API_BASE_URL"),
			Environment: strings.ToLower(viper.GetString("ENVIRONMENT")),
		},
		Server: ServerConfig{
			Host:           viper.GetString("HOST"),
			Port:           viper.GetInt("PORT"),
			GRPCPort:       viper.GetInt("GRPC_PORT"),
			MetricsPort:    viper.GetInt("METRICS_PORT"),
			WebConcurrency: viper.GetInt("WEB_CONCURRENCY"),
			DevReload:      viper.GetBool("DEV_RELOAD"),
		},
		Database: DatabaseConfig{
			URL: viper.GetString("DATABASE_URL"),
		},
		Security: SecurityConfig{
			SecretKey:                viper.GetString("SECRET_KEY"),
			Algorithm:                viper.GetString("ALGORITHM"),
			AccessTokenExpireMinutes: viper.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"),
		},
		CORS: CORSConfig{
			Origins: origins,
		},
		RateLimit: RateLimitConfig{
			PerMinute: viper.GetInt("RATE_LIMIT_PER_MINUTE"),
			RedisURL:  viper.GetString("REDIS_URL"),
		},
		Data: DataConfig{
			RelationshipsFile: viper.GetString("RELATIONSHIPS_FILE"),
			DistributionsFile: viper.GetString("DISTRIBUTIONS_FILE"),
			ProbabilitiesFile: viper.GetString("PROBABILITIES_FILE"),
			XInheritanceFile:  viper.GetString("X_INHERITANCE_FILE"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
			File:  viper.GetString("LOG_FILE"),
		},
		Cache: CacheConfig{
			Enabled:        viper.GetBool("CACHE_ENABLED"),
			MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
			Metrics:        viper.GetBool("CACHE_METRICS"),
			TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted safely
func (c *Config) Validate() error {
	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be one of development, staging, production (got %q)", c.App.Environment)
	}
	if c.App.Environment == EnvProduction && placeholderSecrets[c.Security.SecretKey] {
		return fmt.Errorf("SECRET_KEY is required in production (set via environment variable or .env file)")
	}
	if !strings.HasPrefix(c.App.APIV1Str, "/") {
		return fmt.Errorf("API_V1_STR must start with / (got %q)", c.App.APIV1Str)
	}
	if c.Security.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if _, _, err := c.Database.Driver(); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// ParseOrigins accepts a comma separated list or a JSON array of origins
func ParseOrigins(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}

	if strings.HasPrefix(raw, "[") {
		var origins []string
		if err := json.Unmarshal([]byte(raw), &origins); err != nil {
			return nil, err
		}
		return origins, nil
	}

	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins, nil
}

// Driver returns the database/sql driver name and data source name for URL
func (c *DatabaseConfig) Driver() (string, string, error) {
	url := strings.TrimSpace(c.URL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, nil
	case strings.HasPrefix(url, "sqlite://"):
		// sqlite:///relative.db and sqlite:////absolute.db
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "/")
		if path == "" {
			path = ":memory:"
		}
		return "sqlite", path, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %q", url)
	}
}

// ConnectionString returns the driver-specific connection string
func (c *DatabaseConfig) ConnectionString() string {
	driver, dsn, err := c.Driver()
	if err != nil {
		return ""
	}
	if driver == "sqlite" {
		return dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return dsn
}

// Watch calls onChange whenever the most specific .env file changes, after
// every .env file has been merged again. It returns false when no config
// file was found.
func Watch(onChange func(err error)) bool {
	if len(configFiles) == 0 {
		return false
	}
	viper.SetConfigFile(configFiles[len(configFiles)-1])
	viper.OnConfigChange(func(fsnotify.Event) {
		// viper rereads only the watched file
		onChange(readConfigFiles())
	})
	viper.WatchConfig()
	return true
}

// readConfigFiles reads configFiles again in order, each overriding the last
func readConfigFiles() error {
	for i, file := range configFiles {
		viper.SetConfigFile(file)
		read := viper.MergeInConfig
		if i == 0 {
			read = viper.ReadInConfig
		}
		if err := read(); err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
	}
	return nil
}
