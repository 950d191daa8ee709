package config

const EnvPrefix = "PERSONACRAFT"

const (
	AppEnvDev         = "dev"
	AppEnvDevelopment = "development"
	AppEnvProd        = "prod"
	AppEnvProduction  = "production"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv             = "PERSONACRAFT_APP_ENV"
	EnvPort               = "PERSONACRAFT_APP_PORT"
	EnvDBDSN              = "PERSONACRAFT_DB_DSN"
	EnvDBDriver           = "PERSONACRAFT_DB_DRIVER"
	EnvDBHost             = "PERSONACRAFT_DB_HOST"
	EnvDBUser             = "PERSONACRAFT_DB_USER"
	EnvDBPassword         = "PERSONACRAFT_DB_PASSWORD"
	EnvDBName             = "PERSONACRAFT_DB_NAME"
	EnvRedisURL           = "PERSONACRAFT_REDIS_URL"
	EnvGeminiAPIKey       = "PERSONACRAFT_GEMINI_API_KEY"
	EnvQlooAPIKey         = "PERSONACRAFT_QLOO_API_KEY"
	EnvStackProjectID     = "PERSONACRAFT_STACK_PROJECT_ID"
	EnvStackSecretKey     = "PERSONACRAFT_STACK_SECRET_SERVER_KEY"
	EnvStackWebhookSecret = "PERSONACRAFT_STACK_WEBHOOK_SECRET"
	EnvGenerationMaxCount = "PERSONACRAFT_GENERATION_MAX_COUNT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
