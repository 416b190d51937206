// Package memory holds in-process implementations of the pipeline's storage
// collaborators, used for local runs and tests.
package memory

import (
	// Go Internal Packages
	"context"
	"sort"
	"sync"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"
)

// Store keeps stage outputs and run reports per day.
type Store struct {
	mu           sync.RWMutex
	transactions map[string][]models.CanonicalTransaction
	metrics      map[string][]models.MerchantDailyMetric
	alerts       map[string][]models.Alert
	runs         map[string]models.RunReport
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string][]models.CanonicalTransaction),
		metrics:      make(map[string][]models.MerchantDailyMetric),
		alerts:       make(map[string][]models.Alert),
		runs:         make(map[string]models.RunReport),
	}
}

func (s *Store) ClearDay(ctx context.Context, day string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, day)
	delete(s.metrics, day)
	delete(s.alerts, day)
	return nil
}

func (s *Store) ReplaceTransactions(ctx context.Context, day string, txs []models.CanonicalTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[day] = append([]models.CanonicalTransaction(nil), txs...)
	return nil
}

func (s *Store) ReplaceMetrics(ctx context.Context, day string, metrics []models.MerchantDailyMetric) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[day] = append([]models.MerchantDailyMetric(nil), metrics...)
	return nil
}

func (s *Store) ReplaceAlerts(ctx context.Context, day string, alerts []models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[day] = append([]models.Alert(nil), alerts...)
	return nil
}

// SaveRun keeps the latest report per day.
func (s *Store) SaveRun(ctx context.Context, report models.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[report.Day] = report
	return nil
}

func (s *Store) LatestRun(_ context.Context, day string) (models.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[day]
	if !ok {
		return models.RunReport{}, errors.NotFoundErr("run for " + day)
	}
	return r, nil
}

// Days lists every day that has a run report, newest first.
func (s *Store) Days(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := make([]string, 0, len(s.runs))
	for d := range s.runs {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func (s *Store) TransactionsByDay(_ context.Context, day string) ([]models.CanonicalTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CanonicalTransaction(nil), s.transactions[day]...), nil
}

func (s *Store) MetricsByDay(_ context.Context, day string) ([]models.MerchantDailyMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.MerchantDailyMetric(nil), s.metrics[day]...)
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantID < out[j].MerchantID })
	return out, nil
}

// MetricsByMerchant returns the merchant's metrics for days in [from, to], oldest first.
func (s *Store) MetricsByMerchant(_ context.Context, merchantID, from, to string) ([]models.MerchantDailyMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.MerchantDailyMetric
	for day, ms := range s.metrics {
		if day < from || day > to {
			continue
		}
		for _, m := range ms {
			if m.MerchantID == merchantID {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// Alerts lists alerts matching f, newest day first, then by severity.
func (s *Store) Alerts(_ context.Context, f models.AlertFilter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Alert
	for _, as := range s.alerts {
		for _, a := range as {
			if f.Match(a) {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Day != b.Day {
			return a.Day > b.Day
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.MerchantID != b.MerchantID {
			return a.MerchantID < b.MerchantID
		}
		return a.RuleCode < b.RuleCode
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
