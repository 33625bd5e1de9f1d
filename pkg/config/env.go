package config

// EnvPrefix namespaces envconfig lookups. Fields carry explicit tags, which
// envconfig resolves through its alt-name fallback.
const EnvPrefix = "HIRELOOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "HIRELOOP_APP_ENV"
	EnvPort      = "HIRELOOP_APP_PORT"
	EnvDBDSN     = "HIRELOOP_DB_DSN"
	EnvDBDriver  = "HIRELOOP_DB_DRIVER"
	EnvDBHost    = "HIRELOOP_DB_HOST"
	EnvDBUser    = "HIRELOOP_DB_USER"
	EnvDBName    = "HIRELOOP_DB_NAME"
	EnvRedisURL  = "HIRELOOP_REDIS_URL"
	EnvJWTSecret = "HIRELOOP_JWT_SECRET"
	EnvJWTIssuer = "HIRELOOP_JWT_ISSUER"

	EnvStripeAPIKey        = "HIRELOOP_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "HIRELOOP_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv           = "HIRELOOP_STRIPE_ENV"
	EnvStripeMaxAttempts   = "HIRELOOP_STRIPE_MAX_ATTEMPTS"

	EnvPaymentsMaxMonths  = "HIRELOOP_PAYMENTS_MAX_MONTHS"
	EnvPaymentsCurrencies = "HIRELOOP_PAYMENTS_ALLOWED_CURRENCIES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
