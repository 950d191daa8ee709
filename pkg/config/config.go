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
	Gemini       GeminiConfig
	Qloo         QlooConfig
	StackAuth    StackAuthConfig
	Generation   GenerationConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
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

// validate enforces settings that are only mandatory outside dev.
func (c *Config) validate() error {
	if !c.App.IsProd() {
		return nil
	}
	missing := []string{}
	if c.Gemini.APIKey == "" {
		missing = append(missing, EnvGeminiAPIKey)
	}
	if c.StackAuth.ProjectID == "" {
		missing = append(missing, EnvStackProjectID)
	}
	if c.StackAuth.SecretServerKey == "" {
		missing = append(missing, EnvStackSecretKey)
	}
	if c.StackAuth.WebhookSecret == "" {
		missing = append(missing, EnvStackWebhookSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required production settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"PERSONACRAFT_APP_ENV" required:"true"`
	Port         string   `envconfig:"PERSONACRAFT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PERSONACRAFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PERSONACRAFT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PERSONACRAFT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, AppEnvDevelopment)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

type DBConfig struct {
	DSN    string `envconfig:"PERSONACRAFT_DB_DSN"`
	Driver string `envconfig:"PERSONACRAFT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PERSONACRAFT_DB_HOST"`
	Port     int    `envconfig:"PERSONACRAFT_DB_PORT" default:"5432"`
	User     string `envconfig:"PERSONACRAFT_DB_USER"`
	Password string `envconfig:"PERSONACRAFT_DB_PASSWORD"`
	Name     string `envconfig:"PERSONACRAFT_DB_NAME"`
	SSLMode  string `envconfig:"PERSONACRAFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PERSONACRAFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PERSONACRAFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PERSONACRAFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PERSONACRAFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PERSONACRAFT_REDIS_URL"`
	Address      string        `envconfig:"PERSONACRAFT_REDIS_ADDR"`
	Password     string        `envconfig:"PERSONACRAFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERSONACRAFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERSONACRAFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERSONACRAFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERSONACRAFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERSONACRAFT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"PERSONACRAFT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type GeminiConfig struct {
	APIKey      string        `envconfig:"PERSONACRAFT_GEMINI_API_KEY"`
	Model       string        `envconfig:"PERSONACRAFT_GEMINI_MODEL" default:"gemini-1.5-flash"`
	BaseURL     string        `envconfig:"PERSONACRAFT_GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	Timeout     time.Duration `envconfig:"PERSONACRAFT_GEMINI_TIMEOUT" default:"60s"`
	MaxRetries  int           `envconfig:"PERSONACRAFT_GEMINI_MAX_RETRIES" default:"2"`
	Temperature float64       `envconfig:"PERSONACRAFT_GEMINI_TEMPERATURE" default:"0.9"`
}

type QlooConfig struct {
	APIKey             string        `envconfig:"PERSONACRAFT_QLOO_API_KEY"`
	BaseURL            string        `envconfig:"PERSONACRAFT_QLOO_BASE_URL" default:"https://hackathon.api.qloo.com"`
	Timeout            time.Duration `envconfig:"PERSONACRAFT_QLOO_TIMEOUT" default:"10s"`
	ResultsPerCategory int           `envconfig:"PERSONACRAFT_QLOO_RESULTS_PER_CATEGORY" default:"5"`
	Concurrency        int           `envconfig:"PERSONACRAFT_QLOO_CONCURRENCY" default:"1"`
}

// Enabled reports whether the taste-graph provider is configured at all.
func (q QlooConfig) Enabled() bool {
	return strings.TrimSpace(q.APIKey) != ""
}

type StackAuthConfig struct {
	ProjectID        string        `envconfig:"PERSONACRAFT_STACK_PROJECT_ID"`
	SecretServerKey  string        `envconfig:"PERSONACRAFT_STACK_SECRET_SERVER_KEY"`
	BaseURL          string        `envconfig:"PERSONACRAFT_STACK_BASE_URL" default:"https://api.stack-auth.com"`
	RequestTimeout   time.Duration `envconfig:"PERSONACRAFT_STACK_REQUEST_TIMEOUT" default:"5s"`
	MaxElapsed       time.Duration `envconfig:"PERSONACRAFT_STACK_MAX_ELAPSED" default:"12s"`
	IdentityCacheTTL time.Duration `envconfig:"PERSONACRAFT_STACK_IDENTITY_CACHE_TTL" default:"5m"`
	WebhookSecret    string        `envconfig:"PERSONACRAFT_STACK_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `envconfig:"PERSONACRAFT_STACK_WEBHOOK_TOLERANCE" default:"5m"`
}

type GenerationConfig struct {
	DefaultCount    int           `envconfig:"PERSONACRAFT_GENERATION_DEFAULT_COUNT" default:"3"`
	MaxCount        int           `envconfig:"PERSONACRAFT_GENERATION_MAX_COUNT" default:"10"`
	RateLimitWindow time.Duration `envconfig:"PERSONACRAFT_GENERATION_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"PERSONACRAFT_GENERATION_RATE_LIMIT" default:"5"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PERSONACRAFT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PERSONACRAFT_AUTO_MIGRATE" default:"false"`
}

// IsSQLite reports whether the database is a local sqlite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

func (db *DBConfig) ensureDSN() error {
	switch strings.ToLower(db.Driver) {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, db.Driver)
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	discreteValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if discreteValues[env] == "" {
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
