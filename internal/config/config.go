package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // quota.timezone must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"matrimony-subscription/internal/domain/model"
)

// EnvPrefix namespaces environment overrides, e.g. MATRIMONY_STORE_DATABASE_URL.
const EnvPrefix = "MATRIMONY"

const (
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port" envconfig:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" envconfig:"FORMAT"` // json|console
	Sampling bool   `yaml:"sampling" envconfig:"SAMPLING"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" envconfig:"DRIVER"` // postgres | firestore | memory
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"`
	MaxConns    int32  `yaml:"max_conns" envconfig:"MAX_CONNS"`
	AutoMigrate bool   `yaml:"auto_migrate" envconfig:"AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" envconfig:"URL"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id" envconfig:"PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

type AuthConfig struct {
	Provider  string        `yaml:"provider" envconfig:"PROVIDER"` // jwt | firebase
	JWTSecret string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

type PaymentConfig struct {
	Provider  string `yaml:"provider" envconfig:"PROVIDER"` // razorpay | noop
	KeySecret string `yaml:"key_secret" envconfig:"KEY_SECRET"`
}

type QuotaConfig struct {
	Timezone        string        `yaml:"timezone" envconfig:"TIMEZONE"`
	MaxTxAttempts   int           `yaml:"max_tx_attempts" envconfig:"MAX_TX_ATTEMPTS"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	ContactRate     int           `yaml:"contact_rate" envconfig:"CONTACT_RATE"` // requests per window per user
	ContactRateSpan time.Duration `yaml:"contact_rate_window" envconfig:"CONTACT_RATE_WINDOW"`
}

// PackageConfig declares one catalog entry. Price is a decimal string.
type PackageConfig struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	ValidityMonths   int    `yaml:"validity_months"`
	WeeklyContactCap int    `yaml:"weekly_contact_cap"`
	TotalContactCap  int    `yaml:"total_contact_cap"`
	Price            string `yaml:"price"`
	Currency         string `yaml:"currency"`
}

type WorkerConfig struct {
	Workers             int           `yaml:"workers" envconfig:"WORKERS"`
	CatalogSyncInterval time.Duration `yaml:"catalog_sync_interval" envconfig:"CATALOG_SYNC_INTERVAL"`
}

type Config struct {
	HTTP     HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Log      LogConfig       `yaml:"log" envconfig:"LOG"`
	Store    StoreConfig     `yaml:"store" envconfig:"STORE"`
	Redis    RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Firebase FirebaseConfig  `yaml:"firebase" envconfig:"FIREBASE"`
	Auth     AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	Payment  PaymentConfig   `yaml:"payment" envconfig:"PAYMENT"`
	Quota    QuotaConfig     `yaml:"quota" envconfig:"QUOTA"`
	Worker   WorkerConfig    `yaml:"worker" envconfig:"WORKER"`
	Packages []PackageConfig `yaml:"packages" ignored:"true"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// LoadConfig reads the YAML file at path, applies .env and MATRIMONY_* overrides,
// fills defaults and validates. A missing file is fine when env vars carry everything.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // optional .env next to the binary

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		if c.Runtime.Dev && c.Store.DatabaseURL == "" {
			c.Store.Driver = StoreDriverMemory
		} else {
			c.Store.Driver = StoreDriverPostgres
		}
	}
	if c.Store.MaxConns <= 0 {
		c.Store.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Auth.Provider == "" {
		c.Auth.Provider = "jwt"
	}
	if c.Auth.CacheTTL <= 0 {
		c.Auth.CacheTTL = 5 * time.Minute
	}
	if c.Payment.Provider == "" {
		if c.Runtime.Dev {
			c.Payment.Provider = "noop"
		} else {
			c.Payment.Provider = "razorpay"
		}
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "Asia/Kolkata"
	}
	if c.Quota.MaxTxAttempts <= 0 {
		c.Quota.MaxTxAttempts = 3
	}
	if c.Quota.RetryBackoff <= 0 {
		c.Quota.RetryBackoff = 25 * time.Millisecond
	}
	if c.Quota.ContactRate <= 0 {
		c.Quota.ContactRate = 30
	}
	if c.Quota.ContactRateSpan <= 0 {
		c.Quota.ContactRateSpan = time.Minute
	}
	if c.Worker.Workers <= 0 {
		c.Worker.Workers = 2
	}
	if c.Worker.CatalogSyncInterval <= 0 {
		c.Worker.CatalogSyncInterval = 15 * time.Minute
	}
}

// Validate performs the minimal checks needed to boot.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	case StoreDriverFirestore:
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase.project_id is required for the firestore driver")
		}
	case StoreDriverMemory:
		if !c.Runtime.Dev {
			return errors.New("the memory store driver is only allowed in dev mode")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Auth.Provider {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required for the jwt provider")
		}
	case "firebase":
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase.project_id is required for the firebase auth provider")
		}
	default:
		return fmt.Errorf("unknown auth.provider %q", c.Auth.Provider)
	}
	if c.Payment.Provider == "razorpay" && c.Payment.KeySecret == "" {
		return errors.New("payment.key_secret is required for the razorpay provider")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Location resolves quota.timezone; weekly boundaries are computed in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quota.timezone: %w", err)
	}
	return loc, nil
}

// Catalog builds the package list from config, or the in-code defaults when none is declared.
func (c *Config) Catalog() ([]*model.Package, error) {
	if len(c.Packages) == 0 {
		return model.DefaultPackages(), nil
	}
	out := make([]*model.Package, 0, len(c.Packages))
	seen := make(map[string]bool, len(c.Packages))
	for i, pc := range c.Packages {
		if seen[pc.ID] {
			return nil, fmt.Errorf("packages[%d]: duplicate id %q", i, pc.ID)
		}
		seen[pc.ID] = true
		price := decimal.Zero
		if pc.Price != "" {
			p, err := decimal.NewFromString(pc.Price)
			if err != nil {
				return nil, fmt.Errorf("packages[%d].price: %w", i, err)
			}
			price = p
		}
		pkg, err := model.NewPackage(pc.ID, pc.Name, pc.ValidityMonths, pc.WeeklyContactCap, pc.TotalContactCap, price, pc.Currency)
		if err != nil {
			return nil, fmt.Errorf("packages[%d] (%s): %w", i, pc.ID, err)
		}
		out = append(out, pkg)
	}
	return out, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
