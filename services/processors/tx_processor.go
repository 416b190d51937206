package processors

import (
	// Go Internal Packages
	"context"
	"fmt"

	// Local Packages
	metrics "tx-pipeline/metrics"
	models "tx-pipeline/models"
	"tx-pipeline/services/normalizer"
	utils "tx-pipeline/utils"

	// External Packages
	"go.uber.org/zap"
)

// UndatedDay is the quarantine bucket for records whose day cannot be derived.
const UndatedDay = "undated"

type RawRepository interface {
	InsertRaw(ctx context.Context, records []models.RawRecord) error
}

type Quarantine interface {
	Send(ctx context.Context, day string, rejected []models.Rejected) error
}

// TxProcessor lands consumed records in their day partition. Validation is
// left to the pipeline run; only the timestamp is read here.
type TxProcessor struct {
	Logger     *zap.Logger
	RawRepo    RawRepository
	Quarantine Quarantine
}

func NewTxProcessor(logger *zap.Logger, rawRepo RawRepository, quarantine Quarantine) *TxProcessor {
	return &TxProcessor{Logger: logger, RawRepo: rawRepo, Quarantine: quarantine}
}

func (p *TxProcessor) ProcessRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := make([]models.RawRecord, 0, len(records))
	var undated []models.Rejected
	for idx, record := range records {
		raw, err := models.DecodeRaw(record.Value)
		if err != nil {
			undated = append(undated, models.Rejected{Index: idx, Field: "payload", Reason: "not a JSON object"})
			continue
		}
		ts, err := normalizer.Timestamp(raw)
		if err != nil {
			undated = append(undated, models.Rejected{Index: idx, Field: "ts", Reason: err.Error(), Raw: raw})
			continue
		}
		batch = append(batch, models.RawRecord{
			Day:     utils.DayOf(ts),
			Hour:    ts.Hour(),
			Payload: string(record.Value),
		})
	}

	if err := p.RawRepo.InsertRaw(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert raw transactions: %w", err)
	}
	metrics.IngestedRecords.WithLabelValues("stored").Add(float64(len(batch)))

	if len(undated) > 0 {
		metrics.IngestedRecords.WithLabelValues("undated").Add(float64(len(undated)))
		p.Logger.Warn("records without a usable timestamp", zap.Int("count", len(undated)))
		if err := p.Quarantine.Send(ctx, UndatedDay, undated); err != nil {
			p.Logger.Error("failed to quarantine undated records", zap.Error(err))
		}
	}
	return nil
}
