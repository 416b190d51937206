package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type Producer struct {
	Client *kgo.Client
	Config *models.ProducerConfig
	Logger *zap.Logger
}

func NewTxProducer(conf *models.ProducerConfig, metrics *kprom.Metrics, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.DefaultProduceTopic(conf.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.WithHooks(metrics),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Producer{Client: client, Config: conf, Logger: logger}, nil
}

// Send produces the batch keyed by merchant id and waits for every ack.
func (p *Producer) Send(ctx context.Context, txs []models.RawTransaction) error {
	records := make([]*kgo.Record, 0, len(txs))
	for _, tx := range txs {
		value, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		key, _ := tx.String("merchant_id")
		records = append(records, &kgo.Record{Key: []byte(key), Value: value})
	}

	if err := p.Client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce transactions: %w", err)
	}
	p.Logger.Info("produced transactions", zap.String("topic", p.Config.Topic), zap.Int("count", len(records)))
	return nil
}

func (p *Producer) Close() {
	p.Client.Close()
}
