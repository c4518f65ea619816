// server/internal/database/indexes.go
// Package database owns the Mongo connection lifecycle and the indexes the point
// queries rely on.
package database

import (
	"context"
	"time"

	"spotmytrash-api-server/config"
	"spotmytrash-api-server/internal/models"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, eris.Wrap(err, "database: connect")
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "database: ping")
	}
	zap.L().Info("database: connected to MongoDB", zap.String("db", cfg.DBName))
	return client, nil
}

// EnsureIndexes creates the indexes used by the garbage point queries. It is
// idempotent, Mongo ignores indexes that already exist with the same keys and options.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	points := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt_desc")},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("userId_createdAt")},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("status")},
	}
	if _, err := db.Collection(models.CollectionGarbagePoints).Indexes().CreateMany(ctx, points); err != nil {
		return eris.Wrapf(err, "database: index %s", models.CollectionGarbagePoints)
	}

	photos := []mongo.IndexModel{
		{Keys: bson.D{{Key: "storagePath", Value: 1}}, Options: options.Index().SetName("storagePath").SetUnique(true)},
	}
	if _, err := db.Collection(models.CollectionPhotos).Indexes().CreateMany(ctx, photos); err != nil {
		return eris.Wrapf(err, "database: index %s", models.CollectionPhotos)
	}
	return nil
}
