package main

import (
	"context"

	bookingevents "carrental/internal/bookings/events"
	bookinghandler "carrental/internal/bookings/handler"
	bookingrepo "carrental/internal/bookings/repository"
	bookingservice "carrental/internal/bookings/service"
	"carrental/internal/bookings/validator"
	cataloghandler "carrental/internal/catalog/handler"
	catalogrepo "carrental/internal/catalog/repository"
	catalogservice "carrental/internal/catalog/service"
	healthhandler "carrental/internal/health/handler"
	"carrental/pkg/app"
	"carrental/pkg/config"
	"carrental/pkg/confirm"
	"carrental/pkg/identity"
	"carrental/pkg/kafka"
	kafka_config "carrental/pkg/kafka/config"
	kafka_middleware "carrental/pkg/kafka/middleware"
	"carrental/pkg/kvstore"
)

const ServiceName = "rentals"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Rentals service")

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown("clients", func() error {
		cfg.GracefulShutdown()
		return nil
	})

	store := initStore(cfg)
	serverApp.OnShutdown("store", store.Close)

	catalogRepo, err := catalogrepo.Load(cfg.CatalogPath)
	if err != nil {
		cfg.Log.Fatal("Failed to load car catalog", "path", cfg.CatalogPath, "error", err)
	}
	cfg.Log.Info("Car catalog loaded", "cars", catalogRepo.Len(), "path", cfg.CatalogPath)
	catalogService := catalogservice.NewCatalogService(catalogRepo, cfg.Log)

	publisher := initPublisher(cfg)
	serverApp.OnShutdown("events", publisher.Close)

	bookingService := bookingservice.NewBookingService(
		bookingrepo.NewLedgerRepository(store, cfg.LedgerKey, cfg.Log),
		catalogService,
		validator.NewBookingValidator(cfg.Log),
		cfg.Log,
		bookingservice.WithPublisher(publisher),
	)
	bookingService.Load(context.Background())

	serverApp.SetApp(
		healthhandler.NewHealthHandler(store, catalogRepo.Len, cfg.Log),
		initIdentity(cfg),
		cataloghandler.NewCatalogHandler(catalogService, cfg.Log),
		bookinghandler.NewBookingHandler(
			bookingService,
			confirm.NewDelay(cfg.ConfirmationDelay),
			int64(cfg.MaxRequestSize),
			cfg.Log,
		),
	)
	serverApp.Run()
}

func initStore(cfg *config.Config) kvstore.Store {
	switch cfg.StoreBackend {
	case kvstore.BackendMemory:
		cfg.Log.Warn("Using in-memory store; bookings are lost on restart")
		return kvstore.NewMemory()

	case kvstore.BackendFile:
		store, err := kvstore.NewFile(cfg.StoreDir)
		if err != nil {
			cfg.Log.Fatal("Failed to open file store", "dir", cfg.StoreDir, "error", err)
		}
		cfg.Log.Info("Using file store", "dir", cfg.StoreDir)
		return store

	case kvstore.BackendMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
		cfg.Log.Info("Using MongoDB store", "database", cfg.MongoDatabaseName, "collection", cfg.MongoCollection)
		return kvstore.NewMongo(cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.MongoCollection, cfg.RequestTimeout, cfg.RequestTimeout)

	case kvstore.BackendRedis:
		cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
		cfg.Log.Info("Using Redis store", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return kvstore.NewRedis(cfg.Client.Redis, cfg.RedisPrefix)

	case kvstore.BackendPostgres:
		cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
		store := kvstore.NewPostgres(cfg.Client.Postgres, cfg.PostgresTable, cfg.RequestTimeout, cfg.RequestTimeout)
		if err := store.EnsureSchema(context.Background()); err != nil {
			cfg.Log.Fatal("Failed to create store table", "table", cfg.PostgresTable, "error", err)
		}
		cfg.Log.Info("Using PostgreSQL store", "table", cfg.PostgresTable)
		return store
	}

	cfg.Log.Fatal("Unknown store backend", "backend", cfg.StoreBackend)
	return nil
}

func initPublisher(cfg *config.Config) bookingevents.Publisher {
	if !cfg.EventsEnabled {
		return bookingevents.NewNoopPublisher()
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQ, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Booking events enabled", "topic", cfg.BookingEventsTopic, "dlq_topic", cfg.BookingEventsDLQ)
	return bookingevents.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}

func initIdentity(cfg *config.Config) identity.Provider {
	var chain identity.Chain

	if cfg.JWTSecret != "" {
		provider, err := identity.NewJWTProvider(cfg.JWTSecret, ServiceName)
		if err != nil {
			cfg.Log.Fatal("Invalid JWT configuration", "error", err)
		}
		chain = append(chain, provider)
	}
	if cfg.AllowHeaderIdentity {
		cfg.Log.Warn("Trusting identity headers from upstream proxy", "header", identity.HeaderUserID)
		chain = append(chain, identity.NewHeaderProvider())
	}

	return chain
}
