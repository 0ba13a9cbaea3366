package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	scheduleIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			// The evaluator matches rules by HH:MM label every minute.
			Keys:    bson.D{{Key: "time", Value: 1}},
			Options: options.Index().SetName("idx_time"),
		},
	}
	if _, err := db.GetCollection(CollectionSchedules).Indexes().CreateMany(ctxTimeout, scheduleIndexes); err != nil {
		return err
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "executed_at", Value: -1}},
			Options: options.Index().SetName("idx_executed_at"),
		},
		{
			Keys:    bson.D{{Key: "rule_id", Value: 1}},
			Options: options.Index().SetName("idx_rule_id"),
		},
	}
	if _, err := db.GetCollection(CollectionScheduleLogs).Indexes().CreateMany(ctxTimeout, logIndexes); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}
