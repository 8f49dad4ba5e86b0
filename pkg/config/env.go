package config

const EnvPrefix = "SHOPCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

const (
	EnvAppEnv       = "SHOPCORE_APP_ENV"
	EnvLogLevel     = "SHOPCORE_LOG_LEVEL"
	EnvLogWarnStack = "SHOPCORE_LOG_WARN_STACK"
	EnvServiceKind  = "SHOPCORE_SERVICE_KIND"

	EnvDBDSN       = "SHOPCORE_DB_DSN"
	EnvDBHost      = "SHOPCORE_DB_HOST"
	EnvDBPort      = "SHOPCORE_DB_PORT"
	EnvDBUser      = "SHOPCORE_DB_USER"
	EnvDBPassword  = "SHOPCORE_DB_PASSWORD"
	EnvDBName      = "SHOPCORE_DB_NAME"
	EnvDBSSLMode   = "SHOPCORE_DB_SSLMODE"
	EnvDBIsolation = "SHOPCORE_DB_ISOLATION"

	EnvRedisURL = "SHOPCORE_REDIS_URL"

	EnvAutoMigrate = "SHOPCORE_AUTO_MIGRATE"

	EnvOrdersMaxConflictRetries = "SHOPCORE_ORDERS_MAX_CONFLICT_RETRIES"
	EnvOrdersPendingTTL         = "SHOPCORE_ORDERS_PENDING_TTL"

	EnvOutboxBatchSize     = "SHOPCORE_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxRetentionDays = "SHOPCORE_OUTBOX_RETENTION_DAYS"

	EnvCronInterval = "SHOPCORE_CRON_INTERVAL"

	EnvGCPProjectID      = "SHOPCORE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "SHOPCORE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
