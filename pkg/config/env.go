package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "WISHLANE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv                 = "WISHLANE_APP_ENV"
	EnvPort                   = "WISHLANE_APP_PORT"
	EnvDBDSN                  = "WISHLANE_DB_DSN"
	EnvDBHost                 = "WISHLANE_DB_HOST"
	EnvDBUser                 = "WISHLANE_DB_USER"
	EnvDBName                 = "WISHLANE_DB_NAME"
	EnvRedisURL               = "WISHLANE_REDIS_URL"
	EnvJWTSecret              = "WISHLANE_JWT_SECRET"
	EnvJWTIssuer              = "WISHLANE_JWT_ISSUER"
	EnvJWTExpMins             = "WISHLANE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "WISHLANE_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
