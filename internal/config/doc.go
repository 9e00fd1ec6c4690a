// Package config loads bookingsync configuration.
//
// Values are resolved in order: built-in defaults, an optional TOML file,
// then environment variables. Command-line flags are applied by the caller
// after Load. Validate must pass before the configuration is used.
//
// Environment variables:
//
//	BOOKINGSYNC_ADDR                     HTTP listen address
//	BOOKINGSYNC_METRICS_ADDR             Prometheus listen address
//	LOG_LEVEL, LOG_FORMAT                debug|info|warn|error, text|json
//	DATABASE_DRIVER, DATABASE_DSN        memory|sqlite3|postgres and its DSN
//	GOOGLE_SERVICE_ACCOUNT_EMAIL         service account e-mail
//	GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY   PEM private key
//	GOOGLE_SERVICE_ACCOUNT_KEY_FILE      path to a PEM private key
//	GOOGLE_CALENDAR_ID                   default calendar id
//	GOOGLE_TOKEN_URL                     token endpoint override
//	CALENDAR_API_ENDPOINT                Calendar API base URL override
//	SYNC_ENABLED, SYNC_INTERVAL          auto-sync switch and interval
//	SYNC_WINDOW_DAYS                     import window length
//	SYNC_LAST_SYNC_STORE                 settings|redis
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB Redis connection
//	BUSINESS_TIMEZONE                    IANA zone for dates and times
//	BUSINESS_OPEN, BUSINESS_CLOSE        business hours as HH:MM
//	ADMIN_PASSWORD_HASH                  bcrypt hash of the admin password
package config
