package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	mongoMigration "carrental/internal/migrations/mongo"
	"carrental/pkg/config"
	"carrental/pkg/kvstore"
)

const JobName = "store-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	_ = godotenv.Load()
	cfg := config.FromEnv(JobName)
	defer cfg.GracefulShutdown()
	cfg.Log.Info("Starting store migration job", "backend", cfg.StoreBackend)

	switch cfg.StoreBackend {
	case kvstore.BackendMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
		if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.MongoCollection, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}

	case kvstore.BackendPostgres:
		cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
		store := kvstore.NewPostgres(cfg.Client.Postgres, cfg.PostgresTable, cfg.RequestTimeout, cfg.RequestTimeout)
		if err := store.EnsureSchema(ctx); err != nil {
			cfg.Log.Fatal("Migration failed", "table", cfg.PostgresTable, "error", err)
		}

	default:
		cfg.Log.Info("Nothing to migrate for this backend", "backend", cfg.StoreBackend)
		return
	}

	cfg.Log.Info("Migration completed successfully")
}
