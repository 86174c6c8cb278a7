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
	Calc         CalcConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	GCS          GCSConfig
	Sheets       SheetsConfig
	Cron         CronConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Sheets.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROFITLENS_APP_ENV" required:"true"`
	Port         string `envconfig:"PROFITLENS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROFITLENS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROFITLENS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PROFITLENS_LOG_FORMAT" default:"json"`

	CORSOrigins     []string      `envconfig:"PROFITLENS_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	SyncRateLimit   int           `envconfig:"PROFITLENS_SYNC_RATE_LIMIT" default:"6"`
	SyncRateWindow  time.Duration `envconfig:"PROFITLENS_SYNC_RATE_WINDOW" default:"1m"`
	ShutdownTimeout time.Duration `envconfig:"PROFITLENS_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROFITLENS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PROFITLENS_DB_DSN"`
	Driver string `envconfig:"PROFITLENS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROFITLENS_DB_HOST"`
	LegacyPort     int    `envconfig:"PROFITLENS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROFITLENS_DB_USER"`
	LegacyPassword string `envconfig:"PROFITLENS_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROFITLENS_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROFITLENS_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PROFITLENS_SQLITE_PATH" default:"profitlens.db"`

	MaxOpenConns    int           `envconfig:"PROFITLENS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROFITLENS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROFITLENS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROFITLENS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROFITLENS_REDIS_URL"`
	Address      string        `envconfig:"PROFITLENS_REDIS_ADDR"`
	Password     string        `envconfig:"PROFITLENS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROFITLENS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROFITLENS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROFITLENS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROFITLENS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROFITLENS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROFITLENS_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"PROFITLENS_REDIS_KEY_PREFIX" default:"profitlens"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PROFITLENS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PROFITLENS_AUTO_MIGRATE" default:"false"`
	SeedDefault bool `envconfig:"PROFITLENS_SEED_DEFAULT_PLATFORMS" default:"true"`
}

type CalcConfig struct {
	DefaultGlobalAdsPercent float64 `envconfig:"PROFITLENS_DEFAULT_GLOBAL_ADS_PERCENT" default:"0"`
	DefaultMinMarginAlert   float64 `envconfig:"PROFITLENS_DEFAULT_MIN_MARGIN_ALERT" default:"15"`
	ChangeLogLimit          int     `envconfig:"PROFITLENS_CHANGELOG_LIMIT" default:"500"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PROFITLENS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PROFITLENS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PROFITLENS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FeeChangeTopic        string        `envconfig:"PROFITLENS_PUBSUB_FEE_CHANGE_TOPIC"`
	FeeChangeSubscription string        `envconfig:"PROFITLENS_PUBSUB_FEE_CHANGE_SUBSCRIPTION"`
	IdempotencyTTL        time.Duration `envconfig:"PROFITLENS_PUBSUB_IDEMPOTENCY_TTL" default:"168h"`
	MaxOutstanding        int           `envconfig:"PROFITLENS_PUBSUB_MAX_OUTSTANDING" default:"100"`
	AutoCreate            bool          `envconfig:"PROFITLENS_PUBSUB_AUTO_CREATE" default:"false"`
}

// Enabled reports whether fee change events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.FeeChangeTopic) != ""
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"PROFITLENS_BIGQUERY_DATASET" default:"profitlens"`
	SnapshotTable  string `envconfig:"PROFITLENS_BIGQUERY_SNAPSHOT_TABLE" default:"snapshot_results"`
	FeeChangeTable string `envconfig:"PROFITLENS_BIGQUERY_FEE_CHANGE_TABLE" default:"fee_changes"`
	Enabled        bool   `envconfig:"PROFITLENS_BIGQUERY_ENABLED" default:"false"`
	AutoCreate     bool   `envconfig:"PROFITLENS_BIGQUERY_AUTO_CREATE" default:"false"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"PROFITLENS_GCS_BUCKET_NAME"`
	ArchivePrefix string `envconfig:"PROFITLENS_GCS_ARCHIVE_PREFIX" default:"snapshots"`
}

// Enabled reports whether snapshot CSVs should be archived to a bucket.
func (g GCSConfig) Enabled() bool {
	return strings.TrimSpace(g.BucketName) != ""
}

type SheetsConfig struct {
	Enabled           bool    `envconfig:"PROFITLENS_SHEETS_ENABLED" default:"false"`
	SpreadsheetID     string  `envconfig:"PROFITLENS_SHEETS_SPREADSHEET_ID"`
	RequestsPerSecond float64 `envconfig:"PROFITLENS_SHEETS_REQUESTS_PER_SECOND" default:"1"`
	Burst             int     `envconfig:"PROFITLENS_SHEETS_BURST" default:"10"`
}

func (s SheetsConfig) validate() error {
	if s.Enabled && strings.TrimSpace(s.SpreadsheetID) == "" {
		return fmt.Errorf("%s is required when sheets sync is enabled", EnvSheetsSpreadsheetID)
	}
	return nil
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PROFITLENS_CRON_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"PROFITLENS_CRON_LOCK_TTL" default:"5m"`
	SnapshotEnabled bool          `envconfig:"PROFITLENS_CRON_SNAPSHOT_ENABLED" default:"true"`
	SheetsEnabled   bool          `envconfig:"PROFITLENS_CRON_SHEETS_PUSH_ENABLED" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		return nil
	}
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

type OutboxConfig struct {
	BatchSize      int `envconfig:"PROFITLENS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PROFITLENS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PROFITLENS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PROFITLENS_OUTBOX_RETENTION_DAYS" default:"30"`
}
