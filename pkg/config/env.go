package config

const EnvPrefix = "STOCKROOM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "STOCKROOM_APP_ENV"
	EnvPort     = "STOCKROOM_APP_PORT"
	EnvLogLevel = "STOCKROOM_LOG_LEVEL"

	EnvDBDSN  = "STOCKROOM_DB_DSN"
	EnvDBHost = "STOCKROOM_DB_HOST"
	EnvDBUser = "STOCKROOM_DB_USER"
	EnvDBName = "STOCKROOM_DB_NAME"

	EnvRedisURL = "STOCKROOM_REDIS_URL"

	EnvGCPProjectID = "STOCKROOM_GCP_PROJECT_ID"

	EnvPubSubInventoryTopic = "STOCKROOM_PUBSUB_INVENTORY_TOPIC"
	EnvPubSubInventorySub   = "STOCKROOM_PUBSUB_INVENTORY_SUBSCRIPTION"
	EnvPubSubOrdersTopic    = "STOCKROOM_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub      = "STOCKROOM_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
