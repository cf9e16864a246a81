package config

const (
	EnvPrefix = "GEMCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
	StorageNone   = "none"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	defaultSQLiteDSN = "file:gemcart.db?cache=shared"
)

const (
	EnvAppEnv         = "GEMCART_APP_ENV"
	EnvPort           = "GEMCART_APP_PORT"
	EnvLogLevel       = "GEMCART_LOG_LEVEL"
	EnvStorageBackend = "GEMCART_STORAGE_BACKEND"
	EnvStorageFileDir = "GEMCART_STORAGE_FILE_DIR"
	EnvStoragePoll    = "GEMCART_STORAGE_POLL_INTERVAL"
	EnvDBDSN          = "GEMCART_DB_DSN"
	EnvDBDriver       = "GEMCART_DB_DRIVER"
	EnvDBHost         = "GEMCART_DB_HOST"
	EnvDBUser         = "GEMCART_DB_USER"
	EnvDBName         = "GEMCART_DB_NAME"
	EnvRedisURL       = "GEMCART_REDIS_URL"
	EnvRedisAddr      = "GEMCART_REDIS_ADDR"
	EnvCatalogPath    = "GEMCART_CATALOG_PATH"
	EnvWhatsAppPhone  = "GEMCART_WHATSAPP_PHONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
