package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"strings"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Quarantine keeps rejected records in one Redis list per day, keyed
// "quarantine:{day}".
type Quarantine struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

func NewQuarantine(client *redis.Client, logger *zap.Logger) *Quarantine {
	return &Quarantine{client: client, logger: logger, prefix: "quarantine"}
}

func (q *Quarantine) key(day string) string {
	return fmt.Sprintf("%s:%s", q.prefix, day)
}

// Clear drops the day's list.
func (q *Quarantine) Clear(ctx context.Context, day string) error {
	return q.client.Del(ctx, q.key(day)).Err()
}

// Send appends the rejected records to the day's list in one round trip.
// Records that cannot be encoded are logged and skipped.
func (q *Quarantine) Send(ctx context.Context, day string, rejected []models.Rejected) error {
	if len(rejected) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(rejected))
	for _, rec := range rejected {
		jsonData, err := json.Marshal(rec)
		if err != nil {
			q.logger.Error("failed to marshal rejected record", zap.Int("index", rec.Index), zap.Error(err))
			continue
		}
		values = append(values, jsonData)
	}
	if len(values) == 0 {
		return nil
	}

	key := q.key(day)
	if err := q.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to quarantine records under %s: %w", key, err)
	}
	q.logger.Info("quarantined records", zap.String("key", key), zap.Int("count", len(values)))
	return nil
}

// Day reads back the quarantined records of day in arrival order.
func (q *Quarantine) Day(ctx context.Context, day string) ([]models.Rejected, error) {
	items, err := q.client.LRange(ctx, q.key(day), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Rejected, 0, len(items))
	for _, item := range items {
		var rec models.Rejected
		dec := json.NewDecoder(strings.NewReader(item))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
