package config

// EnvPrefix is handed to envconfig. Fields carry explicit keys which
// envconfig falls back to when the prefixed name is unset.
const EnvPrefix = "PALLETWINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "PALLETWINE_APP_ENV"
	EnvPort       = "PALLETWINE_APP_PORT"
	EnvDBDSN      = "PALLETWINE_DB_DSN"
	EnvDBHost     = "PALLETWINE_DB_HOST"
	EnvDBUser     = "PALLETWINE_DB_USER"
	EnvDBName     = "PALLETWINE_DB_NAME"
	EnvRedisURL   = "PALLETWINE_REDIS_URL"
	EnvJWTSecret  = "PALLETWINE_JWT_SECRET"
	EnvJWTIssuer  = "PALLETWINE_JWT_ISSUER"
	EnvUseSQLite  = "PALLETWINE_USE_SQLITE"
	EnvPaymentWin = "PALLETWINE_PALLET_PAYMENT_WINDOW"
	EnvCacheTTL   = "PALLETWINE_CART_VALIDATION_CACHE_TTL"
)

const defaultSQLiteDSN = "file:palletwine.db?cache=shared&_fk=1"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
