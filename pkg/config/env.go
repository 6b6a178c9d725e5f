package config

const (
	EnvPrefix = "DEVICEHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "DEVICEHUB_APP_ENV"
	EnvPort      = "DEVICEHUB_APP_PORT"
	EnvLogLevel  = "DEVICEHUB_LOG_LEVEL"
	EnvLogFormat = "DEVICEHUB_LOG_FORMAT"

	EnvDBDSN    = "DEVICEHUB_DB_DSN"
	EnvDBDriver = "DEVICEHUB_DB_DRIVER"
	EnvDBHost   = "DEVICEHUB_DB_HOST"
	EnvDBPort   = "DEVICEHUB_DB_PORT"
	EnvDBUser   = "DEVICEHUB_DB_USER"
	EnvDBPass   = "DEVICEHUB_DB_PASSWORD"
	EnvDBName   = "DEVICEHUB_DB_NAME"

	EnvRedisURL = "DEVICEHUB_REDIS_URL"

	EnvJWTSecret              = "DEVICEHUB_JWT_SECRET"
	EnvJWTIssuer              = "DEVICEHUB_JWT_ISSUER"
	EnvJWTExpMins             = "DEVICEHUB_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "DEVICEHUB_REFRESH_TOKEN_TTL_MINUTES"

	EnvOTPTTL    = "DEVICEHUB_OTP_TTL"
	EnvOTPLength = "DEVICEHUB_OTP_LENGTH"

	EnvSMSGatewayURL = "DEVICEHUB_SMS_GATEWAY_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
