package config

const EnvPrefix = "MEDICONNECT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv            = "MEDICONNECT_APP_ENV"
	EnvPort              = "MEDICONNECT_APP_PORT"
	EnvLogLevel          = "MEDICONNECT_LOG_LEVEL"
	EnvDBDSN             = "MEDICONNECT_DB_DSN"
	EnvDBDriver          = "MEDICONNECT_DB_DRIVER"
	EnvDBHost            = "MEDICONNECT_DB_HOST"
	EnvDBUser            = "MEDICONNECT_DB_USER"
	EnvDBName            = "MEDICONNECT_DB_NAME"
	EnvDBPassword        = "MEDICONNECT_DB_PASSWORD"
	EnvUseSQLite         = "MEDICONNECT_USE_SQLITE"
	EnvRedisURL          = "MEDICONNECT_REDIS_URL"
	EnvDeleteMaxAttempts = "MEDICONNECT_DELETE_MAX_ATTEMPTS"
	EnvOperationTimeout  = "MEDICONNECT_OPERATION_TIMEOUT"
	EnvGCPProjectID      = "MEDICONNECT_GCP_PROJECT_ID"
	EnvPubSubTopic       = "MEDICONNECT_PUBSUB_FULFILLMENT_TOPIC"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
