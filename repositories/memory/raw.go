package memory

import (
	// Go Internal Packages
	"context"
	"sync"

	// Local Packages
	models "tx-pipeline/models"
)

// RawStore holds raw records partitioned by day.
type RawStore struct {
	mu   sync.RWMutex
	days map[string][]models.RawTransaction
}

func NewRawStore() *RawStore {
	return &RawStore{days: make(map[string][]models.RawTransaction)}
}

// Append adds raw records to the day partition.
func (s *RawStore) Append(_ context.Context, day string, raws []models.RawTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[day] = append(s.days[day], raws...)
	return nil
}

// InsertRaw decodes and appends ingested payloads. Payloads that do not decode
// are kept as empty records so the normalizer rejects them.
func (s *RawStore) InsertRaw(_ context.Context, records []models.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		raw, err := models.DecodeRaw([]byte(rec.Payload))
		if err != nil {
			raw = models.RawTransaction{}
		}
		s.days[rec.Day] = append(s.days[rec.Day], raw)
	}
	return nil
}

func (s *RawStore) LoadDay(ctx context.Context, day string) ([]models.RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RawTransaction(nil), s.days[day]...), nil
}

// Quarantine keeps rejected records per day.
type Quarantine struct {
	mu   sync.Mutex
	days map[string][]models.Rejected
}

func NewQuarantine() *Quarantine {
	return &Quarantine{days: make(map[string][]models.Rejected)}
}

func (q *Quarantine) Clear(_ context.Context, day string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.days, day)
	return nil
}

func (q *Quarantine) Send(_ context.Context, day string, rejected []models.Rejected) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.days[day] = append(q.days[day], rejected...)
	return nil
}

// Day returns the quarantined records of day.
func (q *Quarantine) Day(day string) []models.Rejected {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Rejected(nil), q.days[day]...)
}
