package main

import (
	// Go Internal Packages
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Local Packages
	"tx-pipeline/api"
	config "tx-pipeline/config"
	helpers "tx-pipeline/helpers"
	kafka "tx-pipeline/kafka"
	models "tx-pipeline/models"
	"tx-pipeline/services/generator"
	txpsr "tx-pipeline/services/processors"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

var (
	configPath = kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()

	runCmd  = kingpin.Command("run", "Run the pipeline for one day and print the report.")
	runDate = runCmd.Flag("date", "Day to process (YYYY-MM-DD).").Required().String()

	serveCmd = kingpin.Command("serve", "Serve the pipeline trigger and read API.")

	ingestCmd = kingpin.Command("ingest", "Consume raw transactions from Kafka into the raw store.")

	produceCmd      = kingpin.Command("produce", "Produce synthetic transactions to Kafka.")
	produceDate     = produceCmd.Flag("date", "Day the synthetic transactions fall on (YYYY-MM-DD).").Required().String()
	produceCount    = produceCmd.Flag("count", "Transactions per batch.").Default("100").Int()
	produceBatches  = produceCmd.Flag("batches", "Number of batches, 0 for no limit.").Default("1").Int()
	produceInterval = produceCmd.Flag("interval", "Pause between batches.").Default("10s").Duration()
	produceSeed     = produceCmd.Flag("seed", "Generator seed.").Default("1").Uint64()
)

func main() {
	command := kingpin.Parse()

	k, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	appKonf, err := config.Parse(k)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !appKonf.IsProdMode {
		k.Print()
	}

	logger := newLogger(appKonf)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case runCmd.FullCommand():
		err = runDay(ctx, appKonf, logger, *runDate)
	case serveCmd.FullCommand():
		err = serve(ctx, appKonf, logger)
	case ingestCmd.FullCommand():
		err = ingest(ctx, appKonf, logger)
	case produceCmd.FullCommand():
		err = produce(ctx, appKonf, logger)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func runDay(ctx context.Context, conf config.Config, logger *zap.Logger, day string) error {
	d, err := buildDeps(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer d.close()

	report, err := d.coordinator().Run(ctx, day)
	if report.RunID != "" {
		_ = helpers.PrintStruct(os.Stdout, report)
	}
	return err
}

func serve(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	d, err := buildDeps(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer d.close()

	if _, statErr := os.Stat(*configPath); statErr == nil {
		err := config.WatchRules(*configPath, func(r config.Rules) {
			th, err := r.Thresholds()
			if err != nil {
				logger.Warn("ignoring rules change", zap.Error(err))
				return
			}
			d.rules.SetThresholds(th)
			logger.Info("rule thresholds reloaded",
				zap.String("high_amount", th.HighAmount.String()),
				zap.Int("burst_count", th.BurstCount),
				zap.Int("multi_country", th.MultiCountry),
				zap.Float64("high_decline_rate", th.HighDeclineRate),
			)
		}, func(err error) {
			logger.Warn("ignoring config change", zap.Error(err))
		})
		if err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         conf.HTTP.Addr,
		Handler:      api.New(d.coordinator(), d.store, logger),
		ReadTimeout:  conf.HTTP.ReadTimeout,
		WriteTimeout: conf.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", conf.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func ingest(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	d, err := buildDeps(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer d.close()

	if conf.Store == "memory" && conf.Source.Kind != "files" {
		logger.Warn("ingesting into the in-memory store; records are lost on exit")
	}

	processor := txpsr.NewTxProcessor(logger, d.raw, d.quarantine)
	metrics := kprom.NewMetrics("txpipeline_ingest")
	consumerConf := &models.ConsumerConfig{
		Brokers:        conf.Kafka.Brokers,
		Name:           conf.Kafka.ConsumerName,
		Topic:          conf.Kafka.Topic,
		RecordsPerPoll: conf.Kafka.RecordsPerPoll,
	}
	consumer, err := kafka.NewTxConsumer(consumerConf, processor, metrics, logger)
	if err != nil {
		return err
	}

	err = consumer.Poll(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func produce(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	day, err := utils.ParseDay(*produceDate)
	if err != nil {
		return err
	}

	metrics := kprom.NewMetrics("txpipeline_produce")
	producer, err := kafka.NewTxProducer(&models.ProducerConfig{Brokers: conf.Kafka.Brokers, Topic: conf.Kafka.Topic}, metrics, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	gen := generator.New(generator.DefaultConfig(), *produceSeed)
	for batch := 1; *produceBatches == 0 || batch <= *produceBatches; batch++ {
		if err := producer.Send(ctx, gen.Batch(day, *produceCount)); err != nil {
			return err
		}
		if *produceBatches != 0 && batch == *produceBatches {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*produceInterval):
		}
	}
	return nil
}
