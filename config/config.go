package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const placeholderJWTSecret = "change-me-in-production"

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	Port           string   `env:"PORT" envDefault:"8080"`
	StorageDriver  string   `env:"STORAGE_DRIVER" envDefault:"mongo"`
	MongoURI       string   `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	DBName         string   `env:"MONGODB_DB" envDefault:"scripture_catalog"`
	JWTSecret      string   `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	AuthEmail      string   `env:"AUTH_EMAIL" envDefault:"admin@example.com"`
	AuthPass       string   `env:"AUTH_PASSWORD" envDefault:"password"`
	S3Bucket       string   `env:"AWS_S3_BUCKET"`
	S3Region       string   `env:"AWS_REGION" envDefault:"us-east-1"`
	S3AccessKeyID  string   `env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey    string   `env:"AWS_SECRET_ACCESS_KEY"`
	MaxUploadMB    int64    `env:"MAX_UPLOAD_MB" envDefault:"10"`
	MaxBodyMB      int64    `env:"MAX_BODY_MB" envDefault:"5"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"text"`
	LogFile        string   `env:"LOG_FILE"` // empty logs to stdout only
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	LoginPerMinute int      `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	GoogleBooksURL string   `env:"GOOGLE_BOOKS_URL" envDefault:"https://www.googleapis.com/books/v1/volumes"`
}

// Load reads the configuration from the environment. Call godotenv first if a
// .env file should be honored.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// MaxUploadBytes is the multipart limit for cover uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// MaxBodyBytes caps JSON request bodies.
func (c *Config) MaxBodyBytes() int64 {
	return c.MaxBodyMB << 20
}

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMongo:
		if c.MongoURI == "" || c.DBName == "" {
			return fmt.Errorf("MONGODB_URI and MONGODB_DB are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (use mongo or memory)", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWTSecret == placeholderJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set to a strong secret (not the default %s)", placeholderJWTSecret)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.MaxBodyMB <= 0 {
		return fmt.Errorf("MAX_BODY_MB must be positive")
	}
	if c.LoginPerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive")
	}
	return nil
}
