package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Reservations  ReservationsConfig
	Hub           HubConfig
	Metadata      MetadataConfig
	Stats         StatsConfig
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
	Env          string `envconfig:"WISHLANE_APP_ENV" required:"true"`
	Port         string `envconfig:"WISHLANE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WISHLANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WISHLANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WISHLANE_DB_DSN"`
	Driver string `envconfig:"WISHLANE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WISHLANE_DB_HOST"`
	LegacyPort     int    `envconfig:"WISHLANE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WISHLANE_DB_USER"`
	LegacyPassword string `envconfig:"WISHLANE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WISHLANE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WISHLANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WISHLANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WISHLANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WISHLANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WISHLANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WISHLANE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WISHLANE_REDIS_ADDR"`
	Password     string        `envconfig:"WISHLANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WISHLANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WISHLANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WISHLANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WISHLANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WISHLANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WISHLANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WISHLANE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WISHLANE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WISHLANE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WISHLANE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WISHLANE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WISHLANE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WISHLANE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WISHLANE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WISHLANE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"WISHLANE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"WISHLANE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"WISHLANE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"WISHLANE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"WISHLANE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"WISHLANE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WISHLANE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WISHLANE_AUTO_MIGRATE" default:"false"`
}

// ReservationsConfig tunes the gift ledger's concurrency guard and who may act
// on reservations.
type ReservationsConfig struct {
	// LockWait bounds how long an operation queues behind another operation on
	// the same gift before failing with a busy error.
	LockWait time.Duration `envconfig:"WISHLANE_RESERVATIONS_LOCK_WAIT" default:"500ms"`
	// OwnerCancel lets the wishlist owner cancel another actor's reservation.
	OwnerCancel bool `envconfig:"WISHLANE_RESERVATIONS_OWNER_CANCEL" default:"false"`
	// AllowAnonymous accepts guest-token reservations from unauthenticated visitors.
	AllowAnonymous bool `envconfig:"WISHLANE_RESERVATIONS_ALLOW_ANONYMOUS" default:"false"`
}

type HubConfig struct {
	SubscriberQueueSize int           `envconfig:"WISHLANE_HUB_SUBSCRIBER_QUEUE_SIZE" default:"32"`
	HeartbeatInterval   time.Duration `envconfig:"WISHLANE_HUB_HEARTBEAT_INTERVAL" default:"15s"`
}

// StatsConfig tunes the landing page summary. The totals are cached in
// Redis because the landing page is public and unauthenticated.
type StatsConfig struct {
	CacheTTL time.Duration `envconfig:"WISHLANE_STATS_CACHE_TTL" default:"30s"`
}

type MetadataConfig struct {
	FetchTimeout time.Duration `envconfig:"WISHLANE_METADATA_FETCH_TIMEOUT" default:"10s"`
	MaxBodyBytes int64         `envconfig:"WISHLANE_METADATA_MAX_BODY_BYTES" default:"2097152"`
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
