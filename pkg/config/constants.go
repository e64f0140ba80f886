package config

const (
	EnvPrefix = "SOURCING"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv    = "SOURCING_APP_ENV"
	EnvPort      = "SOURCING_APP_PORT"
	EnvLogLevel  = "SOURCING_LOG_LEVEL"
	EnvTimezone  = "SOURCING_APP_TIMEZONE"
	EnvDBDSN     = "SOURCING_DB_DSN"
	EnvDBDriver  = "SOURCING_DB_DRIVER"
	EnvDBHost    = "SOURCING_DB_HOST"
	EnvDBUser    = "SOURCING_DB_USER"
	EnvDBName    = "SOURCING_DB_NAME"
	EnvRedisURL  = "SOURCING_REDIS_URL"
	EnvJWTSecret = "SOURCING_JWT_SECRET"
	EnvJWTIssuer = "SOURCING_JWT_ISSUER"
	EnvUseSQLite = "SOURCING_USE_SQLITE"

	EnvPubSubNegotiationTopic = "SOURCING_PUBSUB_NEGOTIATION_TOPIC"
	EnvOutboxMaxAttempts      = "SOURCING_OUTBOX_MAX_ATTEMPTS"
	EnvClientBaseURL          = "SOURCING_CLIENT_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
