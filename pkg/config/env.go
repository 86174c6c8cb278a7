package config

const EnvPrefix = "PROFITLENS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv = "PROFITLENS_APP_ENV"
	EnvPort   = "PROFITLENS_APP_PORT"

	EnvDBDSN  = "PROFITLENS_DB_DSN"
	EnvDBHost = "PROFITLENS_DB_HOST"
	EnvDBUser = "PROFITLENS_DB_USER"
	EnvDBName = "PROFITLENS_DB_NAME"

	EnvUseSQLite = "PROFITLENS_USE_SQLITE"
	EnvRedisURL  = "PROFITLENS_REDIS_URL"

	EnvGCPProjectID        = "PROFITLENS_GCP_PROJECT_ID"
	EnvPubSubFeeTopic      = "PROFITLENS_PUBSUB_FEE_CHANGE_TOPIC"
	EnvSheetsEnabled       = "PROFITLENS_SHEETS_ENABLED"
	EnvSheetsSpreadsheetID = "PROFITLENS_SHEETS_SPREADSHEET_ID"
	EnvCronInterval        = "PROFITLENS_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
