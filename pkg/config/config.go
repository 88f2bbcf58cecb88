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
	Policy       PolicyConfig
	Locks        LocksConfig
	Scale        ScaleConfig
	Labels       LabelsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BINTRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"BINTRACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BINTRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BINTRACK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BINTRACK_LOG_FORMAT" default:"json"`
	// CORSOrigins are the station UIs allowed to call the API.
	CORSOrigins []string `envconfig:"BINTRACK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BINTRACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BINTRACK_DB_DSN"`
	Driver string `envconfig:"BINTRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BINTRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"BINTRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BINTRACK_DB_USER"`
	LegacyPassword string `envconfig:"BINTRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"BINTRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"BINTRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BINTRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BINTRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BINTRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BINTRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"BINTRACK_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the configured driver targets a local sqlite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BINTRACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BINTRACK_REDIS_ADDR"`
	Password     string        `envconfig:"BINTRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"BINTRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BINTRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BINTRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BINTRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BINTRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BINTRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BINTRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BINTRACK_AUTO_MIGRATE" default:"false"`
}

// PolicyConfig holds the lifecycle decisions that differ between sites.
type PolicyConfig struct {
	// AllowDiscrepantWithoutJTC parks a discrepant bin that has no work order
	// in Pending JTC instead of Pending Refill.
	AllowDiscrepantWithoutJTC bool `envconfig:"BINTRACK_POLICY_ALLOW_DISCREPANT_WITHOUT_JTC" default:"false"`
	// AllowOverrideReleased permits Damaged/Missing on bins already released
	// to a workcell.
	AllowOverrideReleased bool `envconfig:"BINTRACK_POLICY_ALLOW_OVERRIDE_RELEASED" default:"false"`
	AllowReturnStaged     bool `envconfig:"BINTRACK_POLICY_ALLOW_RETURN_STAGED" default:"false"`
}

type LocksConfig struct {
	TTL        time.Duration `envconfig:"BINTRACK_LOCK_TTL" default:"30s"`
	Wait       time.Duration `envconfig:"BINTRACK_LOCK_WAIT" default:"5s"`
	RetryDelay time.Duration `envconfig:"BINTRACK_LOCK_RETRY_DELAY" default:"50ms"`
}

type ScaleConfig struct {
	BridgeURL      string        `envconfig:"BINTRACK_SCALE_BRIDGE_URL" default:"http://localhost:8000"`
	Timeout        time.Duration `envconfig:"BINTRACK_SCALE_TIMEOUT" default:"3s"`
	CacheTTL       time.Duration `envconfig:"BINTRACK_SCALE_CACHE_TTL" default:"10s"`
	DefaultStation string        `envconfig:"BINTRACK_SCALE_DEFAULT_STATION" default:"default"`
}

// RateLimitConfig throttles scan traffic per station. A zero limit disables it.
type RateLimitConfig struct {
	ScanWindow time.Duration `envconfig:"BINTRACK_RATE_LIMIT_SCAN_WINDOW" default:"1m"`
	ScanLimit  int           `envconfig:"BINTRACK_RATE_LIMIT_SCAN_LIMIT" default:"120"`
}

type LabelsConfig struct {
	DefaultCopies int `envconfig:"BINTRACK_LABELS_DEFAULT_COPIES" default:"1"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BINTRACK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BINTRACK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BINTRACK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BINTRACK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"BINTRACK_PUBSUB_DOMAIN_TOPIC" default:"bt-domain-events"`
	LabelsTopic        string `envconfig:"BINTRACK_PUBSUB_LABELS_TOPIC" default:"bt-label-events"`
	LabelsSubscription string `envconfig:"BINTRACK_PUBSUB_LABELS_SUBSCRIPTION" default:"bt-label-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BINTRACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BINTRACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BINTRACK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"BINTRACK_CRON_INTERVAL" default:"1h"`
	JobTimeout                time.Duration `envconfig:"BINTRACK_CRON_JOB_TIMEOUT" default:"10m"`
	OutboxRetentionDays       int           `envconfig:"BINTRACK_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	ScaleReadingRetentionDays int           `envconfig:"BINTRACK_CRON_SCALE_READING_RETENTION_DAYS" default:"14"`
	PrintJobRetentionDays     int           `envconfig:"BINTRACK_CRON_PRINT_JOB_RETENTION_DAYS" default:"30"`
	DLQRetentionDays          int           `envconfig:"BINTRACK_CRON_DLQ_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite || db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
