package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/bookshelf/internal/notify"
	"github.com/xenking/bookshelf/internal/storage/s3"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHELF_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHELF_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for session state; in-memory when empty (SHELF_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for relative cover image paths" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHELF_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Auth         AuthConfig
	Session      SessionConfig
	Catalog      CatalogConfig
	Cart         CartConfig
	Notify       NotifyConfig
	Covers       CoversConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig configures bearer token verification and the admin policy.
type AuthConfig struct {
	JWTSecret   string   `usage:"HS256 secret of the identity provider" flag:"jwt-secret"`
	AdminRoles  []string `default:"admin" usage:"Token roles granted admin access"`
	AdminEmails []string `usage:"Emails granted admin access"`
}

// SessionConfig controls anonymous session state.
type SessionConfig struct {
	TTL          time.Duration `default:"720h" usage:"Session state lifetime"`
	CookieSecure bool          `default:"false" usage:"Mark the session cookie Secure"`
}

type CatalogConfig struct {
	PageSize int `default:"12" usage:"Books per catalog page"`
}

type CartConfig struct {
	MaxQuantity int `default:"10" usage:"Per-line quantity cap, 0 disables"`
}

// NotifyConfig holds EmailJS settings. Notifications are disabled unless
// ServiceID, OrderTemplateID and PublicKey are all set.
type NotifyConfig struct {
	Endpoint          string        `default:"https://api.emailjs.com/api/v1.0/email/send"`
	ServiceID         string        `usage:"EmailJS service id"`
	OrderTemplateID   string        `usage:"EmailJS template for new orders"`
	ContactTemplateID string        `usage:"EmailJS template for contact messages"`
	PublicKey         string        `usage:"EmailJS public key"`
	PrivateKey        string        `usage:"EmailJS private key"`
	Recipient         string        `default:"Admin" usage:"Recipient name used in templates"`
	Timeout           time.Duration `default:"10s" usage:"EmailJS request timeout"`
}

// CoversConfig selects the S3 bucket for cover uploads. Uploads are
// disabled when Bucket is empty.
type CoversConfig struct {
	Bucket        string
	Region        string `default:"us-east-1"`
	Endpoint      string `usage:"S3-compatible endpoint, empty for AWS"`
	PublicBaseURL string `usage:"Base URL of uploaded covers"`
	AccessKey     string
	SecretKey     string
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHELF",
		Files:     []string{"config.yaml", "/etc/bookshelf/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHELF_DATABASE_URL or DATABASE_URL")
	case c.Catalog.PageSize <= 0:
		return errors.Errorf("catalog page size must be positive, got %d", c.Catalog.PageSize)
	case c.Cart.MaxQuantity < 0:
		return errors.Errorf("cart max quantity must not be negative, got %d", c.Cart.MaxQuantity)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHELF_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c NotifyConfig) emailJS() notify.EmailJSConfig {
	return notify.EmailJSConfig{
		Endpoint:          c.Endpoint,
		ServiceID:         c.ServiceID,
		OrderTemplateID:   c.OrderTemplateID,
		ContactTemplateID: c.ContactTemplateID,
		PublicKey:         c.PublicKey,
		PrivateKey:        c.PrivateKey,
		Timeout:           c.Timeout,
		Recipient:         c.Recipient,
	}
}

func (c CoversConfig) storeConfig() s3.Config {
	return s3.Config{
		Bucket:        c.Bucket,
		Region:        c.Region,
		Endpoint:      c.Endpoint,
		PublicBaseURL: c.PublicBaseURL,
		AccessKey:     c.AccessKey,
		SecretKey:     c.SecretKey,
	}
}
