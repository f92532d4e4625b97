package config

import "time"

const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultStoreBackend = "file"
	DefaultStoreDir     = "./data"
	DefaultLedgerKey    = "bookings"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rentals"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoCollection   = "KeyValues"

	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisDB     = 0
	DefaultRedisPrefix = "rentals"

	DefaultPostgresTable = "key_values"

	DefaultConfirmationDelay = 0 * time.Millisecond

	DefaultEventsEnabled      = false
	DefaultBookingEventsTopic = "rentals.bookings"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
