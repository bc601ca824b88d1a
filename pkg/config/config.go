package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	HTTP           HTTPConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	GoogleMaps     GoogleMapsConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
	Pallet         PalletConfig
	CartValidation CartValidationConfig
	Cron           CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PALLETWINE_APP_ENV" required:"true"`
	Port         string `envconfig:"PALLETWINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PALLETWINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PALLETWINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PALLETWINE_SERVICE_KIND" default:"api"`
	// MetricsAddr is the scrape listener for the worker binaries; empty
	// disables it. The api serves /metrics on its own router.
	MetricsAddr string `envconfig:"PALLETWINE_METRICS_ADDR"`
}

type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"PALLETWINE_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"PALLETWINE_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	// zone lookups may geocode, so they are throttled per caller
	ZonesRateLimit  int           `envconfig:"PALLETWINE_ZONES_RATE_LIMIT" default:"30"`
	ZonesRateWindow time.Duration `envconfig:"PALLETWINE_ZONES_RATE_WINDOW" default:"1m"`
}

type DBConfig struct {
	DSN    string `envconfig:"PALLETWINE_DB_DSN"`
	Driver string `envconfig:"PALLETWINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PALLETWINE_DB_HOST"`
	LegacyPort     int    `envconfig:"PALLETWINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PALLETWINE_DB_USER"`
	LegacyPassword string `envconfig:"PALLETWINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PALLETWINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PALLETWINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PALLETWINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PALLETWINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PALLETWINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PALLETWINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PALLETWINE_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PALLETWINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PALLETWINE_REDIS_ADDR"`
	Password     string        `envconfig:"PALLETWINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PALLETWINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PALLETWINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PALLETWINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PALLETWINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PALLETWINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PALLETWINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for access tokens minted by the
// auth platform.
type JWTConfig struct {
	Secret            string `envconfig:"PALLETWINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PALLETWINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PALLETWINE_JWT_EXPIRATION_MINUTES" default:"60"`
	CheckSessions     bool   `envconfig:"PALLETWINE_JWT_CHECK_SESSIONS" default:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PALLETWINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PALLETWINE_AUTO_MIGRATE" default:"false"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"PALLETWINE_GOOGLE_MAPS_API_KEY"`
	Region string `envconfig:"PALLETWINE_GOOGLE_MAPS_REGION" default:"se"`
}

// Enabled reports whether geocoding can be attempted.
func (g GoogleMapsConfig) Enabled() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PALLETWINE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PALLETWINE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	PalletEventsTopic string `envconfig:"PALLETWINE_PUBSUB_PALLET_EVENTS_TOPIC" default:"pallet-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PALLETWINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PALLETWINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PALLETWINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PalletConfig struct {
	PaymentWindow time.Duration `envconfig:"PALLETWINE_PALLET_PAYMENT_WINDOW" default:"72h"`
	AdminOverbook bool          `envconfig:"PALLETWINE_PALLET_ADMIN_OVERBOOK" default:"true"`
}

type CartValidationConfig struct {
	CacheSize int           `envconfig:"PALLETWINE_CART_VALIDATION_CACHE_SIZE" default:"256"`
	CacheTTL  time.Duration `envconfig:"PALLETWINE_CART_VALIDATION_CACHE_TTL" default:"5s"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"PALLETWINE_CRON_INTERVAL" default:"15m"`
	OutboxRetention      time.Duration `envconfig:"PALLETWINE_OUTBOX_RETENTION" default:"720h"`
	OutboxRetentionBatch int           `envconfig:"PALLETWINE_OUTBOX_RETENTION_BATCH" default:"500"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
