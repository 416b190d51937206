package main

import (
	// Go Internal Packages
	"context"
	"os"
	"time"

	// Local Packages
	"tx-pipeline/api"
	config "tx-pipeline/config"
	"tx-pipeline/repositories/files"
	"tx-pipeline/repositories/memory"
	mongodb "tx-pipeline/repositories/mongodb"
	redis "tx-pipeline/repositories/redis"
	"tx-pipeline/services/evaluator"
	"tx-pipeline/services/pipeline"
	txpsr "tx-pipeline/services/processors"

	// External Packages
	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
)

// Store is what the pipeline writes and the API reads.
type Store interface {
	pipeline.Sink
	api.Reader
}

// RawStore is both the ingest target and the pipeline source.
type RawStore interface {
	pipeline.Source
	txpsr.RawRepository
}

type deps struct {
	logger     *zap.Logger
	conf       config.Config
	rules      *evaluator.Evaluator
	store      Store
	raw        RawStore
	quarantine pipeline.Quarantine
	locker     pipeline.Locker
	closers    []func()
}

func newLogger(conf config.Config) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(conf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = conf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	return logger
}

// buildDeps wires the storage backends selected by conf.
func buildDeps(ctx context.Context, conf config.Config, logger *zap.Logger) (*deps, error) {
	th, err := conf.Rules.Thresholds()
	if err != nil {
		return nil, err
	}
	d := &deps{logger: logger, conf: conf, rules: evaluator.New(th)}

	switch conf.Store {
	case "mongo":
		mongoClient, err := mongodb.Connect(ctx, conf.Mongo.URI)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(closeCtx)
		})
		if err := mongodb.EnsureIndexes(ctx, mongoClient.Database(conf.Mongo.Database)); err != nil {
			d.close()
			return nil, err
		}
		d.store = mongodb.NewStore(mongoClient, conf.Mongo.Database)
		d.raw = mongodb.NewRawStore(mongoClient, conf.Mongo.Database, logger)
	default:
		d.store = memory.NewStore()
		d.raw = memory.NewRawStore()
	}

	if conf.Source.Kind == "files" {
		d.raw = files.NewPartitionStore(conf.Source.Root, logger)
	}

	if conf.Redis.Enabled {
		redisClient, err := redis.Connect(ctx, conf.Redis.URI, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
		d.quarantine = redis.NewQuarantine(redisClient, logger)
		d.locker = redis.NewDayLocker(redisClient, logger, conf.Redis.LockTTL)
	} else {
		d.quarantine = memory.NewQuarantine()
		d.locker = pipeline.NewLocalLocker()
	}
	return d, nil
}

func (d *deps) coordinator() *pipeline.Coordinator {
	return pipeline.NewCoordinator(d.logger, d.raw, d.store, d.quarantine, d.locker, d.rules, pipeline.Config{
		Workers: d.conf.Pipeline.Workers,
		Chunks:  d.conf.Pipeline.Chunks,
	})
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
