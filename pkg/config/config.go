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
	OTP           OTPConfig
	SMS           SMSConfig
	AuthRateLimit AuthRateLimitConfig
	QR            QRConfig
	Cron          CronConfig
	Seed          SeedConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.ExpirationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("%s must be between 4 and 10", EnvOTPLength)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvOTPTTL)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"DEVICEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"DEVICEHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEVICEHUB_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"DEVICEHUB_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"DEVICEHUB_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list.
	CORSOrigins string `envconfig:"DEVICEHUB_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type DBConfig struct {
	DSN    string `envconfig:"DEVICEHUB_DB_DSN"`
	Driver string `envconfig:"DEVICEHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DEVICEHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"DEVICEHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DEVICEHUB_DB_USER"`
	LegacyPassword string `envconfig:"DEVICEHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"DEVICEHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"DEVICEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEVICEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEVICEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEVICEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEVICEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DEVICEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEVICEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"DEVICEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEVICEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEVICEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEVICEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEVICEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEVICEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEVICEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"DEVICEHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"DEVICEHUB_JWT_ISSUER" default:"devicehub"`
	ExpirationMinutes      int    `envconfig:"DEVICEHUB_JWT_EXPIRATION_MINUTES" default:"10080"`
	RefreshTokenTTLMinutes int    `envconfig:"DEVICEHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type OTPConfig struct {
	TTL       time.Duration `envconfig:"DEVICEHUB_OTP_TTL" default:"10m"`
	Length    int           `envconfig:"DEVICEHUB_OTP_LENGTH" default:"6"`
	Retention time.Duration `envconfig:"DEVICEHUB_OTP_RETENTION" default:"168h"`
	// EchoCode returns the plain code in the send-otp response. Dev only.
	EchoCode bool `envconfig:"DEVICEHUB_OTP_ECHO_CODE" default:"false"`

	ArgonMemoryKB    int `envconfig:"DEVICEHUB_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"DEVICEHUB_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"DEVICEHUB_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"DEVICEHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DEVICEHUB_ARGON_KEY_LEN" default:"32"`
}

type SMSConfig struct {
	// GatewayURL empty means codes are only logged.
	GatewayURL string        `envconfig:"DEVICEHUB_SMS_GATEWAY_URL"`
	Secret     string        `envconfig:"DEVICEHUB_SMS_SECRET"`
	Sender     string        `envconfig:"DEVICEHUB_SMS_SENDER" default:"DEVHUB"`
	TemplateID string        `envconfig:"DEVICEHUB_SMS_TEMPLATE_ID"`
	Route      string        `envconfig:"DEVICEHUB_SMS_ROUTE" default:"TA"`
	MsgType    string        `envconfig:"DEVICEHUB_SMS_MSG_TYPE" default:"1"`
	Template   string        `envconfig:"DEVICEHUB_SMS_TEMPLATE" default:"Your DeviceHub verification code is %s. Do not share it with anybody."`
	Timeout    time.Duration `envconfig:"DEVICEHUB_SMS_TIMEOUT" default:"10s"`
	Workers    int           `envconfig:"DEVICEHUB_SMS_WORKERS" default:"4"`
}

func (s SMSConfig) Enabled() bool {
	return strings.TrimSpace(s.GatewayURL) != ""
}

type AuthRateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_OTP_WINDOW" default:"10m"`
	OTPPhoneLimit int           `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_OTP_PHONE_LIMIT" default:"5"`
	OTPIPLimit    int           `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_OTP_IP_LIMIT" default:"30"`
	VerifyWindow  time.Duration `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_VERIFY_WINDOW" default:"10m"`
	VerifyLimit   int           `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_VERIFY_PHONE_LIMIT" default:"10"`
	VerifyIPLimit int           `envconfig:"DEVICEHUB_AUTH_RATE_LIMIT_VERIFY_IP_LIMIT" default:"60"`
}

type QRConfig struct {
	SizePx int `envconfig:"DEVICEHUB_QR_SIZE_PX" default:"256"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"DEVICEHUB_CRON_INTERVAL" default:"1m"`
	LockTTL     time.Duration `envconfig:"DEVICEHUB_CRON_LOCK_TTL" default:"50s"`
	MetricsAddr string        `envconfig:"DEVICEHUB_CRON_METRICS_ADDR" default:":9102"`
}

// SeedConfig holds the bootstrap elevated accounts created by `migrate -cmd seed`.
type SeedConfig struct {
	SuperadminName  string `envconfig:"DEVICEHUB_SEED_SUPERADMIN_NAME" default:"Super Admin"`
	SuperadminPhone string `envconfig:"DEVICEHUB_SEED_SUPERADMIN_PHONE"`
	AdminName       string `envconfig:"DEVICEHUB_SEED_ADMIN_NAME" default:"Admin User"`
	AdminPhone      string `envconfig:"DEVICEHUB_SEED_ADMIN_PHONE"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DEVICEHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
