package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carrental/internal/migrations/mongo/validators"
	"carrental/pkg/logger"
)

var KeyValueIndexes = []mongo.IndexModel{
	{Keys: bson.D{{Key: "updated_at", Value: -1}}},
}

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections returns the collections the service writes to, keyed by name.
func Collections(keyValueCollection string) map[string]CollectionDef {
	return map[string]CollectionDef{
		keyValueCollection: {
			Indexes:   KeyValueIndexes,
			Validator: validators.KeyValueValidator,
		},
	}
}

// RunMigration creates or updates the store collections in database.
func RunMigration(ctx context.Context, client *mongo.Client, database, keyValueCollection string, log *logger.Logger) error {
	db := client.Database(database)
	log.Info("Running Mongo migrations", "database", database)

	for name, def := range Collections(keyValueCollection) {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating collection validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
