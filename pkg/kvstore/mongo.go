package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultMongoCollection = "KeyValues"

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo keeps one document per key in a collection.
type Mongo struct {
	client       *mongo.Client
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongo(client *mongo.Client, database, collection string, readTimeout, writeTimeout time.Duration) *Mongo {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &Mongo{
		client:       client,
		collection:   client.Database(database).Collection(collection),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := withTimeout(ctx, m.readTimeout)
	defer cancel()

	var entry mongoEntry
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to find key %q: %w", key, err)
	}
	return entry.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key, value string) error {
	ctx, cancel := withTimeout(ctx, m.writeTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert key %q: %w", key, err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, m.readTimeout)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Close is a no-op; the shared client is disconnected by its owner.
func (m *Mongo) Close() error {
	return nil
}
