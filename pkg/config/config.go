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
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Orders       OrdersConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validateIsolation(); err != nil {
		return nil, err
	}
	switch cfg.App.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("SHOPCORE_LOG_FORMAT must be \"json\" or \"console\"")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPCORE_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"SHOPCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPCORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOPCORE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPCORE_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPCORE_DB_DSN"`
	Driver string `envconfig:"SHOPCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCORE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCORE_DB_SSLMODE" default:"disable"`

	// IsolationLevel applies to write transactions; "read_committed" or "serializable".
	IsolationLevel string `envconfig:"SHOPCORE_DB_ISOLATION" default:"read_committed"`

	MaxOpenConns    int           `envconfig:"SHOPCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at Warn. Zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"SHOPCORE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPCORE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPCORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPCORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPCORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPCORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPCORE_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPCORE_AUTO_MIGRATE" default:"false"`
}

type OrdersConfig struct {
	MaxConflictRetries int           `envconfig:"SHOPCORE_ORDERS_MAX_CONFLICT_RETRIES" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"SHOPCORE_ORDERS_RETRY_BASE_DELAY" default:"20ms"`
	IdempotencyTTL     time.Duration `envconfig:"SHOPCORE_ORDERS_IDEMPOTENCY_TTL" default:"2m"`
	PendingTTL         time.Duration `envconfig:"SHOPCORE_ORDERS_PENDING_TTL" default:"72h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SHOPCORE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPCORE_CRON_INTERVAL" default:"15m"`
	LockKey  string        `envconfig:"SHOPCORE_CRON_LOCK_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHOPCORE_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"SHOPCORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic    string `envconfig:"SHOPCORE_PUBSUB_ORDERS_TOPIC" default:"shopcore-order-events"`
	PaymentsTopic  string `envconfig:"SHOPCORE_PUBSUB_PAYMENTS_TOPIC" default:"shopcore-payment-events"`
	InventoryTopic string `envconfig:"SHOPCORE_PUBSUB_INVENTORY_TOPIC" default:"shopcore-inventory-events"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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

func (db *DBConfig) validateIsolation() error {
	switch strings.ToLower(strings.TrimSpace(db.IsolationLevel)) {
	case "", IsolationReadCommitted:
		db.IsolationLevel = IsolationReadCommitted
	case IsolationSerializable:
		db.IsolationLevel = IsolationSerializable
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDBIsolation, IsolationReadCommitted, IsolationSerializable)
	}
	return nil
}
