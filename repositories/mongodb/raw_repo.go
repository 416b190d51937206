package mongodb

import (
	// Go Internal Packages
	"context"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// RawStore keeps ingested payloads as their original JSON text, so amounts
// reach the normalizer exactly as they were sent.
type RawStore struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

func NewRawStore(client *mongo.Client, database string, logger *zap.Logger) *RawStore {
	return &RawStore{Collection: client.Database(database).Collection(rawCollection), Logger: logger}
}

// InsertRaw inserts a batch of partitioned payloads.
func (r *RawStore) InsertRaw(ctx context.Context, records []models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	_, err := r.Collection.InsertMany(ctx, docs)
	return err
}

// LoadDay returns every payload stored for day. Payloads that are not JSON
// objects are passed on as empty records so the normalizer rejects them.
func (r *RawStore) LoadDay(ctx context.Context, day string) ([]models.RawTransaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "hour", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.Collection.Find(ctx, bson.M{"dt": day}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var raws []models.RawTransaction
	for cur.Next(ctx) {
		var rec models.RawRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		raw, err := models.DecodeRaw([]byte(rec.Payload))
		if err != nil {
			r.Logger.Warn("undecodable raw payload", zap.String("dt", day), zap.Error(err))
			raw = models.RawTransaction{}
		}
		raws = append(raws, raw)
	}
	return raws, cur.Err()
}
