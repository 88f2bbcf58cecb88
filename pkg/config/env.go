package config

const (
	EnvPrefix = "BINTRACK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:bintrack.db?_foreign_keys=on"

	EnvAppEnv    = "BINTRACK_APP_ENV"
	EnvPort      = "BINTRACK_APP_PORT"
	EnvLogLevel  = "BINTRACK_LOG_LEVEL"
	EnvDBDSN     = "BINTRACK_DB_DSN"
	EnvDBDriver  = "BINTRACK_DB_DRIVER"
	EnvDBHost    = "BINTRACK_DB_HOST"
	EnvDBUser    = "BINTRACK_DB_USER"
	EnvDBName    = "BINTRACK_DB_NAME"
	EnvDBPass    = "BINTRACK_DB_PASSWORD"
	EnvRedisURL  = "BINTRACK_REDIS_URL"
	EnvUseSQLite = "BINTRACK_USE_SQLITE"

	EnvPolicyAllowDiscrepantWithoutJTC = "BINTRACK_POLICY_ALLOW_DISCREPANT_WITHOUT_JTC"
	EnvPolicyAllowOverrideReleased     = "BINTRACK_POLICY_ALLOW_OVERRIDE_RELEASED"
	EnvPolicyAllowReturnStaged         = "BINTRACK_POLICY_ALLOW_RETURN_STAGED"

	EnvScaleBridgeURL    = "BINTRACK_SCALE_BRIDGE_URL"
	EnvGCPProjectID      = "BINTRACK_GCP_PROJECT_ID"
	EnvPubSubLabelsSub   = "BINTRACK_PUBSUB_LABELS_SUBSCRIPTION"
	EnvPubSubDomainTopic = "BINTRACK_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
