package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ecoterra/siteapi/internal/domain"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	UploadLocal = "local"
	UploadS3    = "s3"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	JWTSecret          string
	JWTIssuer          string
	TokenTTL           time.Duration
	Admin              AdminConfig
	CORSAllowedOrigins []string
	// TrustedProxies are the peers allowed to set X-Forwarded-For / X-Real-IP
	TrustedProxies     []string
	RateLimit          string
	StoreBackend       string
	RedisURL           string
	ImageCacheTTL      time.Duration
	Upload             UploadConfig
	OTLPEndpoint       string
	Company            domain.Company
}

// AdminConfig seeds the single operator account
type AdminConfig struct {
	Username     string
	Email        string
	PasswordHash string
	Password     string
}

// UploadConfig selects where uploaded images are written
type UploadConfig struct {
	Backend         string
	Dir             string
	MaxBytes        int64
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
	// SweepInterval is how often orphaned local uploads are removed; zero disables it
	SweepInterval time.Duration
	SweepGrace    time.Duration
}

// IsDevelopment reports whether internal error details may be shown to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load reads configuration from environment variables and, when CONFIG_FILE
// names one, a yaml/json/toml file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	port := v.GetInt("server_port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT: %q", v.GetString("server_port"))
	}

	maxBytes := v.GetInt64("upload_max_bytes")
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %q", v.GetString("upload_max_bytes"))
	}

	cfg := &Config{
		Environment:   strings.ToLower(v.GetString("environment")),
		ServerPort:    port,
		LogLevel:      v.GetString("log_level"),
		JWTSecret:     v.GetString("jwt_secret"),
		JWTIssuer:     v.GetString("jwt_issuer"),
		TokenTTL:      time.Duration(v.GetInt("token_ttl_hours")) * time.Hour,
		RateLimit:     v.GetString("rate_limit"),
		StoreBackend:  strings.ToLower(v.GetString("store_backend")),
		RedisURL:      v.GetString("redis_url"),
		ImageCacheTTL: v.GetDuration("image_cache_ttl"),
		OTLPEndpoint:  v.GetString("otel_exporter_otlp_endpoint"),
		Admin: AdminConfig{
			Username:     v.GetString("admin_username"),
			Email:        v.GetString("admin_email"),
			PasswordHash: v.GetString("admin_password_hash"),
			Password:     v.GetString("admin_password"),
		},
		CORSAllowedOrigins: parseCSV(v.GetString("cors_allowed_origins")),
		TrustedProxies:     parseCSV(v.GetString("trusted_proxies")),
		Upload: UploadConfig{
			Backend:         strings.ToLower(v.GetString("upload_backend")),
			Dir:             v.GetString("upload_dir"),
			MaxBytes:        maxBytes,
			S3Bucket:        v.GetString("s3_bucket"),
			S3Region:        v.GetString("s3_region"),
			S3Endpoint:      v.GetString("s3_endpoint"),
			S3AccessKey:     v.GetString("s3_access_key"),
			S3SecretKey:     v.GetString("s3_secret_key"),
			S3PublicBaseURL: v.GetString("s3_public_base_url"),
			SweepInterval:   v.GetDuration("upload_sweep_interval"),
			SweepGrace:      v.GetDuration("upload_sweep_grace"),
		},
		Company: domain.Company{
			Name:        v.GetString("company_name"),
			Tagline:     v.GetString("company_tagline"),
			Description: v.GetString("company_description"),
			Email:       v.GetString("company_email"),
			Phone:       v.GetString("company_phone"),
			Address:     v.GetString("company_address"),
			Founded:     v.GetString("company_founded"),
			Services:    parseCSV(v.GetString("company_services")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required values are present and enums are known
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL_HOURS must be positive"))
	}
	if c.Admin.Username == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if c.Admin.PasswordHash == "" && c.Admin.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required"))
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.Upload.Backend {
	case UploadLocal:
		if c.Upload.Dir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required when UPLOAD_BACKEND=local"))
		}
	case UploadS3:
		if c.Upload.S3Bucket == "" || c.Upload.S3PublicBaseURL == "" {
			errs = append(errs, errors.New("S3_BUCKET and S3_PUBLIC_BASE_URL are required when UPLOAD_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown UPLOAD_BACKEND %q", c.Upload.Backend))
	}
	if c.Upload.SweepInterval < 0 || c.Upload.SweepGrace < 0 {
		errs = append(errs, errors.New("UPLOAD_SWEEP_INTERVAL and UPLOAD_SWEEP_GRACE must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("server_port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_issuer", "siteapi")
	v.SetDefault("token_ttl_hours", 24)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_email", "admin@example.com")
	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("rate_limit", "300-M")
	v.SetDefault("store_backend", StoreMemory)
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("image_cache_ttl", "30s")
	v.SetDefault("upload_backend", UploadLocal)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("upload_max_bytes", 5*1024*1024)
	v.SetDefault("upload_sweep_interval", "1h")
	v.SetDefault("upload_sweep_grace", "10m")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("company_name", "Ecoterra Environmental Engineering")
	v.SetDefault("company_tagline", "Engineering for a resilient environment")
	v.SetDefault("company_description", "Environmental assessment, remediation design and water resources engineering.")
	v.SetDefault("company_email", "info@example.com")
	v.SetDefault("company_phone", "")
	v.SetDefault("company_address", "")
	v.SetDefault("company_founded", "")
	v.SetDefault("company_services", "Environmental Impact Assessment,Site Remediation,Water Resources,Air Quality")
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
