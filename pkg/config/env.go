package config

const (
	EnvPrefix = "CAMPUSAID"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "CAMPUSAID_APP_ENV"
	EnvPort                   = "CAMPUSAID_APP_PORT"
	EnvDBDSN                  = "CAMPUSAID_DB_DSN"
	EnvDBHost                 = "CAMPUSAID_DB_HOST"
	EnvDBUser                 = "CAMPUSAID_DB_USER"
	EnvDBName                 = "CAMPUSAID_DB_NAME"
	EnvDBPassword             = "CAMPUSAID_DB_PASSWORD"
	EnvRedisURL               = "CAMPUSAID_REDIS_URL"
	EnvJWTSecret              = "CAMPUSAID_JWT_SECRET"
	EnvJWTIssuer              = "CAMPUSAID_JWT_ISSUER"
	EnvJWTExpMins             = "CAMPUSAID_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "CAMPUSAID_REFRESH_TOKEN_TTL_MINUTES"
	EnvIdentityAllowedDomains = "CAMPUSAID_IDENTITY_ALLOWED_DOMAINS"
	EnvIdentityGoogleClientID = "CAMPUSAID_IDENTITY_GOOGLE_CLIENT_ID"
	EnvIdentityAllowPassword  = "CAMPUSAID_IDENTITY_ALLOW_PASSWORD"
	EnvGCPProjectID           = "CAMPUSAID_GCP_PROJECT_ID"
	EnvGCSBucket              = "CAMPUSAID_GCS_BUCKET_NAME"
	EnvPubSubLifecycleTopic   = "CAMPUSAID_PUBSUB_LIFECYCLE_TOPIC"
	EnvCronOutboxRetention    = "CAMPUSAID_CRON_OUTBOX_RETENTION"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
