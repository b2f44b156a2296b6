package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace for every setting.
const EnvPrefix = "PHARMASTOCK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	AuthRate     AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PHARMASTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"PHARMASTOCK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PHARMASTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PHARMASTOCK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PHARMASTOCK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PHARMASTOCK_DB_DSN"`
	Driver string `envconfig:"PHARMASTOCK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PHARMASTOCK_DB_HOST"`
	Port     int    `envconfig:"PHARMASTOCK_DB_PORT" default:"5432"`
	User     string `envconfig:"PHARMASTOCK_DB_USER"`
	Password string `envconfig:"PHARMASTOCK_DB_PASSWORD"`
	Name     string `envconfig:"PHARMASTOCK_DB_NAME"`
	SSLMode  string `envconfig:"PHARMASTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PHARMASTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHARMASTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHARMASTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHARMASTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the lightweight embedded driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"PHARMASTOCK_REDIS_URL"`
	Address      string        `envconfig:"PHARMASTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"PHARMASTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PHARMASTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PHARMASTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHARMASTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHARMASTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHARMASTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHARMASTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PHARMASTOCK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PHARMASTOCK_JWT_ISSUER" default:"pharmastock"`
	ExpirationMinutes int    `envconfig:"PHARMASTOCK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PHARMASTOCK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PHARMASTOCK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PHARMASTOCK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PHARMASTOCK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PHARMASTOCK_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"PHARMASTOCK_AUTO_MIGRATE" default:"false"`
	DedupeAlerts     bool `envconfig:"PHARMASTOCK_DEDUPE_ALERTS" default:"true"`
	AuditToWarehouse bool `envconfig:"PHARMASTOCK_AUDIT_TO_WAREHOUSE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PHARMASTOCK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PHARMASTOCK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PHARMASTOCK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PHARMASTOCK_PUBSUB_DOMAIN_TOPIC" default:"pharmastock-domain-events"`
	DomainSubscription string `envconfig:"PHARMASTOCK_PUBSUB_DOMAIN_SUBSCRIPTION"`
	AuditTopic         string `envconfig:"PHARMASTOCK_PUBSUB_AUDIT_TOPIC" default:"pharmastock-audit-events"`
	AuditSubscription  string `envconfig:"PHARMASTOCK_PUBSUB_AUDIT_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"PHARMASTOCK_BIGQUERY_DATASET" default:"pharmastock"`
	AuditEventsTable string `envconfig:"PHARMASTOCK_BIGQUERY_AUDIT_TABLE" default:"audit_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PHARMASTOCK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PHARMASTOCK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PHARMASTOCK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"PHARMASTOCK_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PHARMASTOCK_LOGIN_RATE_WINDOW" default:"5m"`
	LoginIPLimit    int           `envconfig:"PHARMASTOCK_LOGIN_RATE_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"PHARMASTOCK_LOGIN_RATE_EMAIL_LIMIT" default:"5"`
}

type CronConfig struct {
	ExpiryScanInterval   time.Duration `envconfig:"PHARMASTOCK_CRON_EXPIRY_SCAN_INTERVAL" default:"1h"`
	LowStockScanInterval time.Duration `envconfig:"PHARMASTOCK_CRON_LOW_STOCK_SCAN_INTERVAL" default:"30m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"PHARMASTOCK_DB_HOST": db.Host,
		"PHARMASTOCK_DB_USER": db.User,
		"PHARMASTOCK_DB_NAME": db.Name,
	}
	for _, key := range []string{"PHARMASTOCK_DB_HOST", "PHARMASTOCK_DB_USER", "PHARMASTOCK_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either PHARMASTOCK_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
