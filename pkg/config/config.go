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
	DB           DBConfig
	Redis        RedisConfig
	Seckill      SeckillConfig
	Cache        CacheConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DEALRUSH_APP_ENV" required:"true"`
	Port         string `envconfig:"DEALRUSH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEALRUSH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEALRUSH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DEALRUSH_DB_DSN"`
	Driver string `envconfig:"DEALRUSH_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DEALRUSH_DB_HOST"`
	Port     int    `envconfig:"DEALRUSH_DB_PORT" default:"5432"`
	User     string `envconfig:"DEALRUSH_DB_USER"`
	Password string `envconfig:"DEALRUSH_DB_PASSWORD"`
	Name     string `envconfig:"DEALRUSH_DB_NAME"`
	SSLMode  string `envconfig:"DEALRUSH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEALRUSH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEALRUSH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEALRUSH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEALRUSH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEALRUSH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEALRUSH_REDIS_ADDR"`
	Password     string        `envconfig:"DEALRUSH_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEALRUSH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEALRUSH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEALRUSH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEALRUSH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEALRUSH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEALRUSH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SeckillConfig tunes the admission pipeline and its stream consumer.
type SeckillConfig struct {
	Stream        string        `envconfig:"DEALRUSH_SECKILL_STREAM" default:"stream:orders"`
	Group         string        `envconfig:"DEALRUSH_SECKILL_GROUP" default:"order-consumers"`
	Consumer      string        `envconfig:"DEALRUSH_SECKILL_CONSUMER" default:"consumer-1"`
	ReadBlock     time.Duration `envconfig:"DEALRUSH_SECKILL_READ_BLOCK" default:"2s"`
	SweepBackoff  time.Duration `envconfig:"DEALRUSH_SECKILL_SWEEP_BACKOFF" default:"20ms"`
	OrderLockTTL  time.Duration `envconfig:"DEALRUSH_SECKILL_ORDER_LOCK_TTL" default:"10s"`
	LockRetries   int           `envconfig:"DEALRUSH_SECKILL_LOCK_RETRIES" default:"3"`
	LockRetryWait time.Duration `envconfig:"DEALRUSH_SECKILL_LOCK_RETRY_WAIT" default:"50ms"`
}

// CacheConfig tunes the read-through cache guard.
type CacheConfig struct {
	EntryTTL       time.Duration `envconfig:"DEALRUSH_CACHE_ENTRY_TTL" default:"30m"`
	NullTTL        time.Duration `envconfig:"DEALRUSH_CACHE_NULL_TTL" default:"2m"`
	LogicalTTL     time.Duration `envconfig:"DEALRUSH_CACHE_LOGICAL_TTL" default:"30m"`
	RebuildLockTTL time.Duration `envconfig:"DEALRUSH_CACHE_REBUILD_LOCK_TTL" default:"10s"`
	RebuildWorkers int           `envconfig:"DEALRUSH_CACHE_REBUILD_WORKERS" default:"4"`
	RebuildQueue   int           `envconfig:"DEALRUSH_CACHE_REBUILD_QUEUE" default:"256"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEALRUSH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEALRUSH_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
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
