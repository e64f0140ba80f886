package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"SOURCING_APP_ENV" required:"true"`
	Port         string `envconfig:"SOURCING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOURCING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOURCING_LOG_WARN_STACK" default:"false"`
	// Location used to decide which calendar day a delivery deadline expires on.
	Timezone    string   `envconfig:"SOURCING_APP_TIMEZONE" default:"UTC"`
	CORSOrigins []string `envconfig:"SOURCING_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves Timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(a.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"SOURCING_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOURCING_DB_DSN"`
	Driver string `envconfig:"SOURCING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOURCING_DB_HOST"`
	LegacyPort     int    `envconfig:"SOURCING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOURCING_DB_USER"`
	LegacyPassword string `envconfig:"SOURCING_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOURCING_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOURCING_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SOURCING_DB_SQLITE_PATH" default:"file:sourcing.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"SOURCING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOURCING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOURCING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOURCING_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SOURCING_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOURCING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOURCING_REDIS_ADDR"`
	Password     string        `envconfig:"SOURCING_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOURCING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOURCING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOURCING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOURCING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOURCING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOURCING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens minted by the external auth service.
// Audience is enforced only when set.
type JWTConfig struct {
	Secret            string        `envconfig:"SOURCING_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"SOURCING_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"SOURCING_JWT_EXPIRATION_MINUTES" default:"60"`
	Audience          string        `envconfig:"SOURCING_JWT_AUDIENCE"`
	ClockSkew         time.Duration `envconfig:"SOURCING_JWT_CLOCK_SKEW" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOURCING_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOURCING_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SOURCING_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"SOURCING_HTTP_IDEMPOTENCY_TTL" default:"24h"`
	ClaimTTL             time.Duration `envconfig:"SOURCING_EVENTING_CLAIM_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SOURCING_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SOURCING_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NegotiationTopic        string `envconfig:"SOURCING_PUBSUB_NEGOTIATION_TOPIC" default:"sourcing-negotiation-events"`
	NotificationTopic       string `envconfig:"SOURCING_PUBSUB_NOTIFICATION_TOPIC" default:"sourcing-notification-events"`
	AnalyticsSubscription   string `envconfig:"SOURCING_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"sourcing-analytics"`
	AnalyticsMaxOutstanding int    `envconfig:"SOURCING_PUBSUB_ANALYTICS_MAX_OUTSTANDING" default:"20"`
}

type BigQueryConfig struct {
	Dataset           string        `envconfig:"SOURCING_BIGQUERY_DATASET" default:"sourcing"`
	NegotiationsTable string        `envconfig:"SOURCING_BIGQUERY_NEGOTIATIONS_TABLE" default:"negotiation_events"`
	CreateTables      bool          `envconfig:"SOURCING_BIGQUERY_CREATE_TABLES" default:"false"`
	InsertAttempts    int           `envconfig:"SOURCING_BIGQUERY_INSERT_ATTEMPTS" default:"3"`
	InsertBackoff     time.Duration `envconfig:"SOURCING_BIGQUERY_INSERT_BACKOFF" default:"250ms"`
	InsertMaxBackoff  time.Duration `envconfig:"SOURCING_BIGQUERY_INSERT_MAX_BACKOFF" default:"2s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOURCING_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOURCING_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOURCING_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PollInterval converts PollIntervalMS, defaulting to 500ms.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"SOURCING_CRON_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"SOURCING_CRON_LOCK_TTL" default:"10m"`
	OutboxRetention time.Duration `envconfig:"SOURCING_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"SOURCING_CRON_DLQ_RETENTION" default:"2160h"`
	ExpiryBatchSize int           `envconfig:"SOURCING_CRON_EXPIRY_BATCH_SIZE" default:"200"`
}

// RateLimitConfig throttles quote submissions per merchant.
type RateLimitConfig struct {
	QuoteSubmitLimit  int           `envconfig:"SOURCING_RATE_LIMIT_QUOTE_SUBMIT" default:"30"`
	QuoteSubmitWindow time.Duration `envconfig:"SOURCING_RATE_LIMIT_QUOTE_WINDOW" default:"1m"`
}

// ClientConfig drives the sourcing CLI and its local pending store.
type ClientConfig struct {
	BaseURL       string        `envconfig:"SOURCING_CLIENT_BASE_URL" default:"http://localhost:8080"`
	Token         string        `envconfig:"SOURCING_CLIENT_TOKEN"`
	Timeout       time.Duration `envconfig:"SOURCING_CLIENT_TIMEOUT" default:"10s"`
	PendingDBPath string        `envconfig:"SOURCING_CLIENT_PENDING_DB" default:"sourcing-pending.db"`
	RetryAttempts int           `envconfig:"SOURCING_CLIENT_RETRY_ATTEMPTS" default:"3"`
	RetryBase     time.Duration `envconfig:"SOURCING_CLIENT_RETRY_BASE" default:"250ms"`
}

// LoadClient reads only the client section so the CLI runs without server settings.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%s is required", EnvClientBaseURL)
	}
	return &cfg, nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite || strings.EqualFold(db.Driver, DriverSQLite) {
		db.Driver = DriverSQLite
		db.DSN = db.SQLitePath
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
