package mongodb

import (
	// Go Internal Packages
	"context"
	"sort"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists stage outputs and run reports, one day at a time.
type Store struct {
	DB *mongo.Database
}

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{DB: client.Database(database)}
}

func (s *Store) ClearDay(ctx context.Context, day string) error {
	for _, coll := range []string{transactionsCollection, metricsCollection, alertsCollection} {
		if _, err := s.DB.Collection(coll).DeleteMany(ctx, bson.M{"dt": day}); err != nil {
			return err
		}
	}
	return nil
}

// replaceDay swaps the day's documents in coll for the converted items. When
// conversion or the insert fails the partial day is removed before returning.
func replaceDay[S, T any](ctx context.Context, coll *mongo.Collection, day string, items []S, convert func(*S) (T, error)) error {
	if _, err := coll.DeleteMany(ctx, bson.M{"dt": day}); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	batch := make([]interface{}, len(items))
	for i := range items {
		doc, err := convert(&items[i])
		if err != nil {
			return err
		}
		batch[i] = doc
	}
	if _, err := coll.InsertMany(ctx, batch); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = coll.DeleteMany(cleanupCtx, bson.M{"dt": day})
		return err
	}
	return nil
}

func (s *Store) ReplaceTransactions(ctx context.Context, day string, txs []models.CanonicalTransaction) error {
	return replaceDay(ctx, s.DB.Collection(transactionsCollection), day, txs, (*models.CanonicalTransaction).Transform)
}

func (s *Store) ReplaceMetrics(ctx context.Context, day string, metrics []models.MerchantDailyMetric) error {
	return replaceDay(ctx, s.DB.Collection(metricsCollection), day, metrics, (*models.MerchantDailyMetric).Transform)
}

func (s *Store) ReplaceAlerts(ctx context.Context, day string, alerts []models.Alert) error {
	return replaceDay(ctx, s.DB.Collection(alertsCollection), day, alerts, func(a *models.Alert) (models.MongoAlert, error) {
		return a.Transform(), nil
	})
}

// SaveRun upserts the report by run id.
func (s *Store) SaveRun(ctx context.Context, report models.RunReport) error {
	doc := report.Transform()
	opts := options.Replace().SetUpsert(true)
	_, err := s.DB.Collection(runsCollection).ReplaceOne(ctx, bson.M{"_id": doc.RunID}, doc, opts)
	return err
}

func (s *Store) LatestRun(ctx context.Context, day string) (models.RunReport, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	var doc models.MongoRun
	err := s.DB.Collection(runsCollection).FindOne(ctx, bson.M{"dt": day}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RunReport{}, errors.NotFoundErr("run for " + day)
	}
	if err != nil {
		return models.RunReport{}, err
	}
	return doc.Report(), nil
}

// Days lists every day that has a run report, newest first.
func (s *Store) Days(ctx context.Context) ([]string, error) {
	values, err := s.DB.Collection(runsCollection).Distinct(ctx, "dt", bson.M{})
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(values))
	for _, v := range values {
		if d, ok := v.(string); ok {
			days = append(days, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func (s *Store) TransactionsByDay(ctx context.Context, day string) ([]models.CanonicalTransaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "tx_id", Value: 1}})
	var docs []models.MongoTransaction
	if err := findAll(ctx, s.DB.Collection(transactionsCollection), bson.M{"dt": day}, opts, &docs); err != nil {
		return nil, err
	}
	out := make([]models.CanonicalTransaction, len(docs))
	for i := range docs {
		tx, err := docs[i].Canonical()
		if err != nil {
			return nil, err
		}
		out[i] = tx
	}
	return out, nil
}

func (s *Store) MetricsByDay(ctx context.Context, day string) ([]models.MerchantDailyMetric, error) {
	opts := options.Find().SetSort(bson.D{{Key: "merchant_id", Value: 1}})
	return s.findMetrics(ctx, bson.M{"dt": day}, opts)
}

// MetricsByMerchant returns the merchant's metrics for days in [from, to], oldest first.
func (s *Store) MetricsByMerchant(ctx context.Context, merchantID, from, to string) ([]models.MerchantDailyMetric, error) {
	filter := bson.M{"merchant_id": merchantID, "dt": bson.M{"$gte": from, "$lte": to}}
	opts := options.Find().SetSort(bson.D{{Key: "dt", Value: 1}})
	return s.findMetrics(ctx, filter, opts)
}

func (s *Store) findMetrics(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.MerchantDailyMetric, error) {
	var docs []models.MongoMetric
	if err := findAll(ctx, s.DB.Collection(metricsCollection), filter, opts, &docs); err != nil {
		return nil, err
	}
	out := make([]models.MerchantDailyMetric, len(docs))
	for i := range docs {
		m, err := docs[i].Metric()
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Alerts lists alerts matching f, newest day first, then by severity.
func (s *Store) Alerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	filter := bson.M{}
	if f.Day != "" {
		filter["dt"] = f.Day
	}
	if f.MerchantID != "" {
		filter["merchant_id"] = f.MerchantID
	}
	if f.RuleCode != "" {
		filter["rule_code"] = f.RuleCode
	}
	if f.SeverityMin > 0 {
		filter["severity"] = bson.M{"$gte": f.SeverityMin}
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "dt", Value: -1},
		{Key: "severity", Value: -1},
		{Key: "merchant_id", Value: 1},
		{Key: "rule_code", Value: 1},
	})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	var docs []models.MongoAlert
	if err := findAll(ctx, s.DB.Collection(alertsCollection), filter, opts, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Alert, len(docs))
	for i := range docs {
		out[i] = docs[i].Alert()
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions, out *[]T) error {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
