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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Identity      IdentityConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Media         MediaConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if len(cfg.Identity.Domains()) == 0 {
		return nil, fmt.Errorf("%s must list at least one domain", EnvIdentityAllowedDomains)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CAMPUSAID_APP_ENV" required:"true"`
	Port         string   `envconfig:"CAMPUSAID_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CAMPUSAID_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CAMPUSAID_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CAMPUSAID_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CAMPUSAID_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUSAID_DB_DSN"`
	Driver string `envconfig:"CAMPUSAID_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAMPUSAID_DB_HOST"`
	Port     int    `envconfig:"CAMPUSAID_DB_PORT" default:"5432"`
	User     string `envconfig:"CAMPUSAID_DB_USER"`
	Password string `envconfig:"CAMPUSAID_DB_PASSWORD"`
	Name     string `envconfig:"CAMPUSAID_DB_NAME"`
	SSLMode  string `envconfig:"CAMPUSAID_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAMPUSAID_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUSAID_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUSAID_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUSAID_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CAMPUSAID_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUSAID_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAMPUSAID_REDIS_ADDR"`
	Password     string        `envconfig:"CAMPUSAID_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUSAID_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUSAID_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUSAID_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUSAID_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUSAID_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUSAID_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CAMPUSAID_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CAMPUSAID_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CAMPUSAID_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CAMPUSAID_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	MinLength        int `envconfig:"CAMPUSAID_PASSWORD_MIN_LENGTH" default:"6"`
	ArgonMemoryKB    int `envconfig:"CAMPUSAID_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAMPUSAID_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAMPUSAID_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAMPUSAID_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAMPUSAID_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	SignInWindow       time.Duration `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_SIGNIN_WINDOW" default:"1m"`
	SignInEmailLimit   int           `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_SIGNIN_EMAIL_LIMIT" default:"5"`
	SignInIPLimit      int           `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_SIGNIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CAMPUSAID_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type IdentityConfig struct {
	GoogleIssuerURL string   `envconfig:"CAMPUSAID_IDENTITY_GOOGLE_ISSUER" default:"https://accounts.google.com"`
	GoogleClientID  string   `envconfig:"CAMPUSAID_IDENTITY_GOOGLE_CLIENT_ID"`
	AllowedDomains  []string `envconfig:"CAMPUSAID_IDENTITY_ALLOWED_DOMAINS" default:"u.northwestern.edu,northwestern.edu"`
	AllowPassword   bool     `envconfig:"CAMPUSAID_IDENTITY_ALLOW_PASSWORD" default:"false"`
}

// Domains returns the normalized allow-list, lower-cased and without a leading "@".
func (i IdentityConfig) Domains() []string {
	out := make([]string, 0, len(i.AllowedDomains))
	for _, domain := range i.AllowedDomains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			out = append(out, domain)
		}
	}
	return out
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAMPUSAID_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAMPUSAID_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL   time.Duration `envconfig:"CAMPUSAID_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ConsumerIdempotencyLease time.Duration `envconfig:"CAMPUSAID_EVENTING_IDEMPOTENCY_LEASE" default:"2m"`
	HTTPIdempotencyTTL       time.Duration `envconfig:"CAMPUSAID_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CAMPUSAID_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CAMPUSAID_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CAMPUSAID_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"CAMPUSAID_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"CAMPUSAID_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type MediaConfig struct {
	MaxAvatarMB int `envconfig:"CAMPUSAID_MEDIA_MAX_AVATAR_MB" default:"5"`
}

// MaxAvatarBytes converts the configured avatar ceiling to bytes.
func (m MediaConfig) MaxAvatarBytes() int64 {
	if m.MaxAvatarMB <= 0 {
		return 5 << 20
	}
	return int64(m.MaxAvatarMB) << 20
}

type PubSubConfig struct {
	LifecycleTopic        string `envconfig:"CAMPUSAID_PUBSUB_LIFECYCLE_TOPIC" default:"campusaid-lifecycle-events"`
	AnalyticsSubscription string `envconfig:"CAMPUSAID_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"campusaid-lifecycle-analytics"`
}

type BigQueryConfig struct {
	Dataset              string `envconfig:"CAMPUSAID_BIGQUERY_DATASET" default:"campusaid"`
	LifecycleEventsTable string `envconfig:"CAMPUSAID_BIGQUERY_LIFECYCLE_TABLE" default:"lifecycle_events"`
	CreateTables         bool   `envconfig:"CAMPUSAID_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAMPUSAID_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAMPUSAID_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAMPUSAID_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"CAMPUSAID_CRON_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"CAMPUSAID_CRON_LOCK_TTL" default:"10m"`
	OutboxRetention time.Duration `envconfig:"CAMPUSAID_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"CAMPUSAID_CRON_DLQ_RETENTION" default:"2160h"`
	Jobs            []string      `envconfig:"CAMPUSAID_CRON_JOBS"`
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
	for _, env := range discreteDBEnvVars {
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
