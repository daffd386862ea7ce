package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry the full
	// DEALRUSH_ names so the prefix stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DEALRUSH_DB_DSN"
	EnvDBHost = "DEALRUSH_DB_HOST"
	EnvDBUser = "DEALRUSH_DB_USER"
	EnvDBName = "DEALRUSH_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
