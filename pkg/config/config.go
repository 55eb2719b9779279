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
	FeatureFlags FeatureFlagsConfig
	Fulfillment  FulfillmentConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	HTTP         HTTPConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	StockWatch   StockWatchConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Fulfillment.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEDICONNECT_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDICONNECT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDICONNECT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDICONNECT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MEDICONNECT_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDICONNECT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDICONNECT_DB_DSN"`
	Driver string `envconfig:"MEDICONNECT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MEDICONNECT_DB_HOST"`
	Port     int    `envconfig:"MEDICONNECT_DB_PORT" default:"5432"`
	User     string `envconfig:"MEDICONNECT_DB_USER"`
	Password string `envconfig:"MEDICONNECT_DB_PASSWORD"`
	Name     string `envconfig:"MEDICONNECT_DB_NAME"`
	SSLMode  string `envconfig:"MEDICONNECT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"MEDICONNECT_SQLITE_PATH" default:"mediconnect.db"`

	MaxOpenConns    int           `envconfig:"MEDICONNECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDICONNECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDICONNECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDICONNECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDICONNECT_REDIS_URL"`
	Address      string        `envconfig:"MEDICONNECT_REDIS_ADDR"`
	Password     string        `envconfig:"MEDICONNECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDICONNECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDICONNECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDICONNECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDICONNECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDICONNECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDICONNECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEDICONNECT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEDICONNECT_AUTO_MIGRATE" default:"false"`
}

type FulfillmentConfig struct {
	DeleteMaxAttempts int           `envconfig:"MEDICONNECT_DELETE_MAX_ATTEMPTS" default:"3"`
	DeleteRetryDelay  time.Duration `envconfig:"MEDICONNECT_DELETE_RETRY_DELAY" default:"50ms"`
	OperationTimeout  time.Duration `envconfig:"MEDICONNECT_OPERATION_TIMEOUT" default:"10s"`
}

func (f FulfillmentConfig) validate() error {
	if f.DeleteMaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvDeleteMaxAttempts)
	}
	if f.OperationTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvOperationTimeout)
	}
	return nil
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"MEDICONNECT_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig bounds mutating calls per caller per window.
type RateLimitConfig struct {
	WriteLimit  int64         `envconfig:"MEDICONNECT_RATE_LIMIT_WRITES" default:"120"`
	WriteWindow time.Duration `envconfig:"MEDICONNECT_RATE_LIMIT_WINDOW" default:"1m"`
}

type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"MEDICONNECT_CORS_ORIGINS"`
	ReadTimeout     time.Duration `envconfig:"MEDICONNECT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"MEDICONNECT_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"MEDICONNECT_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MEDICONNECT_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"MEDICONNECT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FulfillmentTopic string `envconfig:"MEDICONNECT_PUBSUB_FULFILLMENT_TOPIC" default:"mc-fulfillment-events"`
	InventoryTopic   string `envconfig:"MEDICONNECT_PUBSUB_INVENTORY_TOPIC" default:"mc-inventory-events"`

	InventorySubscription string `envconfig:"MEDICONNECT_PUBSUB_INVENTORY_SUBSCRIPTION" default:"mc-inventory-stockwatch"`
}

// StockWatchConfig drives the worker that follows inventory events.
type StockWatchConfig struct {
	LowStockThreshold int           `envconfig:"MEDICONNECT_LOW_STOCK_THRESHOLD" default:"5"`
	DedupeTTL         time.Duration `envconfig:"MEDICONNECT_EVENT_DEDUPE_TTL" default:"72h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MEDICONNECT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MEDICONNECT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MEDICONNECT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || strings.EqualFold(db.Driver, DriverSQLite) {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
