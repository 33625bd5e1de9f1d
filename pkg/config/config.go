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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HIRELOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"HIRELOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HIRELOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HIRELOOP_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string      `envconfig:"HIRELOOP_CORS_ALLOWED_ORIGINS"`
	ShutdownTimeout    time.Duration `envconfig:"HIRELOOP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HIRELOOP_DB_DSN"`
	Driver string `envconfig:"HIRELOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HIRELOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"HIRELOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HIRELOOP_DB_USER"`
	LegacyPassword string `envconfig:"HIRELOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"HIRELOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"HIRELOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HIRELOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HIRELOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HIRELOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HIRELOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"HIRELOOP_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the sqlite driver was selected (local development only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"HIRELOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HIRELOOP_REDIS_ADDR"`
	Password     string        `envconfig:"HIRELOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"HIRELOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HIRELOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HIRELOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HIRELOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HIRELOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HIRELOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for access tokens minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"HIRELOOP_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"HIRELOOP_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HIRELOOP_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey           string        `envconfig:"HIRELOOP_STRIPE_API_KEY"`
	WebhookSecret    string        `envconfig:"HIRELOOP_STRIPE_WEBHOOK_SECRET"`
	Env              string        `envconfig:"HIRELOOP_STRIPE_ENV" default:"test"`
	BaseURL          string        `envconfig:"HIRELOOP_STRIPE_BASE_URL"`
	WebhookTolerance time.Duration `envconfig:"HIRELOOP_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
	RequestTimeout   time.Duration `envconfig:"HIRELOOP_STRIPE_REQUEST_TIMEOUT" default:"10s"`
	MaxAttempts      int           `envconfig:"HIRELOOP_STRIPE_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"HIRELOOP_STRIPE_RETRY_BASE_DELAY" default:"200ms"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	WebhookDedupeTTL  time.Duration `envconfig:"HIRELOOP_PAYMENTS_WEBHOOK_DEDUPE_TTL" default:"72h"`
	AllowedCurrencies []string      `envconfig:"HIRELOOP_PAYMENTS_ALLOWED_CURRENCIES" default:"USD,EUR,GBP"`
	MaxMonths         int           `envconfig:"HIRELOOP_PAYMENTS_MAX_MONTHS" default:"24"`
}

// CurrencyAllowed reports whether the ISO code is accepted for new payment intents.
func (p PaymentsConfig) CurrencyAllowed(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, allowed := range p.AllowedCurrencies {
		if strings.ToUpper(strings.TrimSpace(allowed)) == code {
			return true
		}
	}
	return false
}

func (p PaymentsConfig) validate() error {
	if p.MaxMonths <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentsMaxMonths)
	}
	if len(p.AllowedCurrencies) == 0 {
		return fmt.Errorf("%s must list at least one currency", EnvPaymentsCurrencies)
	}
	return nil
}

// ReconcileConfig drives the cron worker that re-checks attempts whose webhook never arrived.
type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"HIRELOOP_RECONCILE_INTERVAL" default:"15m"`
	StaleAfter time.Duration `envconfig:"HIRELOOP_RECONCILE_STALE_AFTER" default:"30m"`
	BatchSize  int           `envconfig:"HIRELOOP_RECONCILE_BATCH_SIZE" default:"100"`
	LockTTL    time.Duration `envconfig:"HIRELOOP_RECONCILE_LOCK_TTL" default:"10m"`
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
