package config

import (
	// Go Internal Packages
	"fmt"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	"tx-pipeline/services/evaluator"

	// External Packages
	"github.com/shopspring/decimal"
)

var DefaultConfig = []byte(`
application: "tx-pipeline"

logger:
  level: "debug"

is_prod_mode: false

# memory | mongo
store: "memory"

source:
  # store | files
  kind: "store"
  root: "./data/raw/transactions"

mongo:
  uri: "mongodb://localhost:27017"
  database: "txpipeline"

redis:
  enabled: false
  uri: "localhost:6379"
  password: ""
  db: 0
  lock_ttl: "30m"

kafka:
  brokers:
    - "localhost:9092"
  topic: "transactions"
  records_per_poll: 5000
  consumer_name: "tx-pipeline-ingest"

pipeline:
  workers: 4
  chunks: 4

rules:
  high_amount: "1000"
  burst_count: 30
  multi_country: 3
  high_decline_rate: 0.5

http:
  addr: ":8080"
  read_timeout: "10s"
  write_timeout: "5m"
`)

type Config struct {
	Application string   `koanf:"application"`
	Logger      Logger   `koanf:"logger"`
	IsProdMode  bool     `koanf:"is_prod_mode"`
	Store       string   `koanf:"store"`
	Source      Source   `koanf:"source"`
	Mongo       Mongo    `koanf:"mongo"`
	Redis       Redis    `koanf:"redis"`
	Kafka       Kafka    `koanf:"kafka"`
	Pipeline    Pipeline `koanf:"pipeline"`
	Rules       Rules    `koanf:"rules"`
	HTTP        HTTP     `koanf:"http"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type Source struct {
	Kind string `koanf:"kind"`
	Root string `koanf:"root"`
}

type Mongo struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Redis struct {
	Enabled  bool          `koanf:"enabled"`
	URI      string        `koanf:"uri"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

type Kafka struct {
	Brokers        []string `koanf:"brokers"`
	Topic          string   `koanf:"topic"`
	RecordsPerPoll int      `koanf:"records_per_poll"`
	ConsumerName   string   `koanf:"consumer_name"`
}

type Pipeline struct {
	Workers int `koanf:"workers"`
	Chunks  int `koanf:"chunks"`
}

// Rules holds the rule thresholds. HighAmount is kept as text so it is
// parsed straight into a decimal.
type Rules struct {
	HighAmount      string  `koanf:"high_amount"`
	BurstCount      int     `koanf:"burst_count"`
	MultiCountry    int     `koanf:"multi_country"`
	HighDeclineRate float64 `koanf:"high_decline_rate"`
}

type HTTP struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Thresholds converts the rules section for the evaluator.
func (r Rules) Thresholds() (evaluator.Thresholds, error) {
	amount, err := decimal.NewFromString(r.HighAmount)
	if err != nil {
		return evaluator.Thresholds{}, errors.InvalidParamsErr(fmt.Errorf("rules.high_amount: %w", err))
	}
	return evaluator.Thresholds{
		HighAmount:      amount,
		BurstCount:      r.BurstCount,
		MultiCountry:    r.MultiCountry,
		HighDeclineRate: r.HighDeclineRate,
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errors.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}

	switch c.Store {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" {
			ve.Add("mongo.uri", "cannot be empty")
		}
		if c.Mongo.Database == "" {
			ve.Add("mongo.database", "cannot be empty")
		}
	default:
		ve.Add("store", "must be memory or mongo")
	}

	switch c.Source.Kind {
	case "store":
	case "files":
		if c.Source.Root == "" {
			ve.Add("source.root", "cannot be empty")
		}
	default:
		ve.Add("source.kind", "must be store or files")
	}

	if c.Redis.Enabled {
		if c.Redis.URI == "" {
			ve.Add("redis.uri", "cannot be empty")
		}
		if c.Redis.LockTTL <= 0 {
			ve.Add("redis.lock_ttl", "must be positive")
		}
	}
	if len(c.Kafka.Brokers) == 0 {
		ve.Add("kafka.brokers", "cannot be empty")
	}
	if c.Pipeline.Workers < 1 {
		ve.Add("pipeline.workers", "must be at least 1")
	}
	if c.Pipeline.Chunks < 1 {
		ve.Add("pipeline.chunks", "must be at least 1")
	}

	if amount, err := decimal.NewFromString(c.Rules.HighAmount); err != nil {
		ve.Add("rules.high_amount", "must be a decimal number")
	} else if amount.IsNegative() {
		ve.Add("rules.high_amount", "cannot be negative")
	}
	if c.Rules.BurstCount < 0 {
		ve.Add("rules.burst_count", "cannot be negative")
	}
	if c.Rules.MultiCountry < 1 {
		ve.Add("rules.multi_country", "must be at least 1")
	}
	if c.Rules.HighDeclineRate < 0 || c.Rules.HighDeclineRate > 1 {
		ve.Add("rules.high_decline_rate", "must be within [0, 1]")
	}

	if c.HTTP.Addr == "" {
		ve.Add("http.addr", "cannot be empty")
	}

	return ve.Err()
}
