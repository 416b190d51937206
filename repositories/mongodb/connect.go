package mongodb

import (
	// Go Internal Packages
	"context"
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	rawCollection          = "raw_transactions"
	transactionsCollection = "transactions"
	metricsCollection      = "merchant_daily_metrics"
	alertsCollection       = "alerts"
	runsCollection         = "pipeline_runs"
)

// Connect connects to the mongodb server and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	// Set the server selection timeout to 5 seconds.
	timeout := time.Second * 5
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}

	client, err := mongo.Connect(ctx, opts.ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the MongoDB server to verify the connection.
	if pingErr := client.Ping(ctx, nil); pingErr != nil {
		return nil, pingErr
	}
	return client, nil
}

// EnsureIndexes creates the day and merchant indexes every collection is queried by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	byDay := mongo.IndexModel{Keys: bson.D{{Key: "dt", Value: 1}}}
	byMerchantDay := mongo.IndexModel{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "dt", Value: 1}}}

	indexes := map[string][]mongo.IndexModel{
		rawCollection:          {byDay},
		transactionsCollection: {byDay, byMerchantDay},
		metricsCollection:      {byDay, byMerchantDay},
		alertsCollection:       {byDay, byMerchantDay},
		runsCollection:         {{Keys: bson.D{{Key: "dt", Value: 1}, {Key: "started_at", Value: -1}}}},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
