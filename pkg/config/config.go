package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Storage  StorageConfig
	DB       DBConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Checkout CheckoutConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GEMCART_APP_ENV" required:"true"`
	Port         string `envconfig:"GEMCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GEMCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEMCART_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"GEMCART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StorageConfig selects the key-value backend that plays the role of the
// shopper's local storage.
type StorageConfig struct {
	Backend      string        `envconfig:"GEMCART_STORAGE_BACKEND" default:"memory"`
	FileDir      string        `envconfig:"GEMCART_STORAGE_FILE_DIR" default:"./data/storage"`
	PollInterval time.Duration `envconfig:"GEMCART_STORAGE_POLL_INTERVAL" default:"2s"`
	Channel      string        `envconfig:"GEMCART_STORAGE_CHANNEL" default:"storage-events"`
}

// Kind returns the normalized backend name.
func (s StorageConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(s.Backend))
	if kind == "" {
		return StorageMemory
	}
	return kind
}

type DBConfig struct {
	DSN    string `envconfig:"GEMCART_DB_DSN"`
	Driver string `envconfig:"GEMCART_DB_DRIVER" default:"sqlite"`

	LegacyHost     string `envconfig:"GEMCART_DB_HOST"`
	LegacyPort     int    `envconfig:"GEMCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GEMCART_DB_USER"`
	LegacyPassword string `envconfig:"GEMCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"GEMCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"GEMCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEMCART_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"GEMCART_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"GEMCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEMCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate   bool   `envconfig:"GEMCART_DB_AUTO_MIGRATE" default:"false"`
	MigrationsDir string `envconfig:"GEMCART_DB_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
}

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GEMCART_REDIS_URL"`
	Address      string        `envconfig:"GEMCART_REDIS_ADDR"`
	Password     string        `envconfig:"GEMCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEMCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEMCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEMCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEMCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEMCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEMCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CatalogConfig struct {
	Path string `envconfig:"GEMCART_CATALOG_PATH"`
}

type CheckoutConfig struct {
	WhatsAppPhone string `envconfig:"GEMCART_WHATSAPP_PHONE" default:"919999999999"`
	StoreName     string `envconfig:"GEMCART_STORE_NAME" default:"Gemcart Jewels"`
}

// CronConfig drives the housekeeping jobs.
type CronConfig struct {
	Interval           time.Duration `envconfig:"GEMCART_CRON_INTERVAL" default:"10m"`
	LockKey            string        `envconfig:"GEMCART_CRON_LOCK_KEY" default:"housekeeping"`
	LockTTL            time.Duration `envconfig:"GEMCART_CRON_LOCK_TTL" default:"15m"`
	ProfileIdle        time.Duration `envconfig:"GEMCART_PROFILE_IDLE" default:"30m"`
	TombstoneRetention time.Duration `envconfig:"GEMCART_TOMBSTONE_RETENTION" default:"24h"`
	TempFileAge        time.Duration `envconfig:"GEMCART_TEMP_FILE_AGE" default:"1h"`
}

func (c *Config) validate() error {
	switch c.Storage.Kind() {
	case StorageMemory, StorageFile, StorageNone:
		return nil
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis storage backend", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	case StorageSQL:
		switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
		case DBDriverSQLite, DBDriverPostgres:
		default:
			return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
		}
		return c.DB.EnsureDSN()
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

// EnsureDSN fills DSN from the sqlite default or the discrete postgres
// settings when it is not set explicitly.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
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
