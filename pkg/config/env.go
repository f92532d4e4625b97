package config

const (
	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvStoreBackend = "STORE_BACKEND"
	EnvStoreDir     = "STORE_DIR"
	EnvLedgerKey    = "LEDGER_KEY"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoCollection   = "MONGO_COLLECTION"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
	EnvRedisPrefix   = "REDIS_PREFIX"

	EnvPostgresDSN   = "POSTGRES_DSN"
	EnvPostgresTable = "POSTGRES_TABLE"

	EnvCatalogPath       = "CATALOG_PATH"
	EnvConfirmationDelay = "CONFIRMATION_DELAY"

	EnvJWTSecret           = "JWT_SECRET"
	EnvAllowHeaderIdentity = "ALLOW_HEADER_IDENTITY"

	EnvEventsEnabled      = "EVENTS_ENABLED"
	EnvBookingEventsTopic = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQ   = "BOOKING_EVENTS_DLQ_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
