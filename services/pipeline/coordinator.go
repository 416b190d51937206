// Package pipeline sequences the normalize, aggregate and evaluate stages for
// one target day and owns the run state machine.
package pipeline

import (
	// Go Internal Packages
	"context"
	"maps"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	metrics "tx-pipeline/metrics"
	models "tx-pipeline/models"
	"tx-pipeline/services/aggregator"
	"tx-pipeline/services/evaluator"
	"tx-pipeline/services/normalizer"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source supplies the complete raw record set of a day.
type Source interface {
	LoadDay(ctx context.Context, day string) ([]models.RawTransaction, error)
}

// Sink persists stage outputs. Every Replace call fully replaces the day and
// leaves nothing of the day behind when it fails.
type Sink interface {
	ClearDay(ctx context.Context, day string) error
	ReplaceTransactions(ctx context.Context, day string, txs []models.CanonicalTransaction) error
	ReplaceMetrics(ctx context.Context, day string, metrics []models.MerchantDailyMetric) error
	ReplaceAlerts(ctx context.Context, day string, alerts []models.Alert) error
	SaveRun(ctx context.Context, report models.RunReport) error
}

// Quarantine keeps the records the normalizer dropped.
type Quarantine interface {
	Clear(ctx context.Context, day string) error
	Send(ctx context.Context, day string, rejected []models.Rejected) error
}

// Locker grants at most one in-flight run per day.
type Locker interface {
	Lock(ctx context.Context, day string) (unlock func(), err error)
}

type Config struct {
	Workers int
	Chunks  int
}

type Coordinator struct {
	Logger     *zap.Logger
	Source     Source
	Sink       Sink
	Quarantine Quarantine
	Locker     Locker
	Rules      *evaluator.Evaluator
	Conf       Config

	now func() time.Time
}

func NewCoordinator(logger *zap.Logger, source Source, sink Sink, quarantine Quarantine, locker Locker, rules *evaluator.Evaluator, conf Config) *Coordinator {
	if conf.Workers < 1 {
		conf.Workers = 1
	}
	if conf.Chunks < 1 {
		conf.Chunks = conf.Workers
	}
	return &Coordinator{
		Logger:     logger,
		Source:     source,
		Sink:       sink,
		Quarantine: quarantine,
		Locker:     locker,
		Rules:      rules,
		Conf:       conf,
		now:        time.Now,
	}
}

// run carries the mutable state of one invocation.
type run struct {
	report models.RunReport
	start  time.Time
	rules  []evaluator.Rule
	logger *zap.Logger

	stageStart time.Time

	canonical []models.CanonicalTransaction
	metrics   []models.MerchantDailyMetric
}

// Run executes the full state machine for day. A run rejected because the
// day is already running returns a Conflict error and an empty report. Any
// other failure returns the FAILED report together with the error.
func (c *Coordinator) Run(ctx context.Context, day string) (models.RunReport, error) {
	start, err := utils.ParseDay(day)
	if err != nil {
		return models.RunReport{}, errors.InvalidParamsErr(err)
	}

	unlock, err := c.Locker.Lock(ctx, day)
	if err != nil {
		if errors.IsKind(err, errors.Conflict) {
			metrics.RunsRejected.Inc()
		}
		return models.RunReport{}, err
	}
	defer unlock()

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	r := &run{
		start: start,
		rules: c.Rules.Snapshot(),
		report: models.RunReport{
			RunID:     uuid.New().String(),
			Day:       day,
			State:     models.StatePending,
			Stages:    make(map[models.RunState]time.Duration),
			StartedAt: c.now().UTC(),
			Counts:    models.RunCounts{Alerts: make(map[models.RuleCode]int, len(models.RuleCodes))},
		},
	}
	for _, code := range models.RuleCodes {
		r.report.Counts.Alerts[code] = 0
	}
	r.logger = c.Logger.With(zap.String("run_id", r.report.RunID), zap.String("dt", day))
	r.logger.Info("pipeline run started")

	if err := c.execute(ctx, r); err != nil {
		c.fail(ctx, r, err)
		return r.report, err
	}

	metrics.RunsTotal.WithLabelValues(string(models.StateDone)).Inc()
	r.logger.Info("pipeline run finished",
		zap.Int("read", r.report.Counts.Read),
		zap.Int("normalized", r.report.Counts.Normalized),
		zap.Int("dropped", r.report.Counts.Dropped),
		zap.Int("merchant_days", r.report.Counts.MerchantDays),
		zap.Int("alerts", r.report.Counts.AlertTotal()),
		zap.Duration("duration", r.report.Duration()),
	)
	return r.report, nil
}

func (c *Coordinator) execute(ctx context.Context, r *run) error {
	stages := []struct {
		state models.RunState
		fn    func(context.Context, *run) error
	}{
		{models.StatePending, c.clear},
		{models.StateNormalizing, c.normalize},
		{models.StateAggregating, c.aggregate},
		{models.StateEvaluating, c.evaluate},
		{models.StatePersisting, c.publish},
	}
	for _, s := range stages {
		r.report.State = s.state
		if err := ctx.Err(); err != nil {
			return errors.E(errors.Canceled, "run canceled", err)
		}
		r.stageStart = time.Now()
		if s.state != models.StatePersisting {
			if err := c.checkpoint(ctx, r); err != nil {
				return err
			}
		}
		err := s.fn(ctx, r)
		if _, recorded := r.report.Stages[s.state]; !recorded {
			r.endStage(s.state)
		}
		if err != nil {
			return err
		}
		r.logger.Debug("stage complete", zap.String("stage", string(s.state)), zap.Duration("elapsed", r.report.Stages[s.state]))
	}
	return nil
}

func (r *run) endStage(state models.RunState) {
	elapsed := time.Since(r.stageStart)
	r.report.Stages[state] = elapsed
	metrics.StageDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

// snapshot copies the report so a saved version never shares maps with the
// run still mutating it.
func (r *run) snapshot() models.RunReport {
	out := r.report
	out.Stages = maps.Clone(r.report.Stages)
	out.Counts.Alerts = maps.Clone(r.report.Counts.Alerts)
	return out
}

// checkpoint saves the in-flight report. Until the DONE report replaces it,
// the day reads as unpublished, including while a re-run rewrites its output.
func (c *Coordinator) checkpoint(ctx context.Context, r *run) error {
	if err := c.Sink.SaveRun(ctx, r.snapshot()); err != nil {
		return errors.PersistenceErr("run report", r.report.Day, err)
	}
	return nil
}

// clear removes every output of a previous run of the day.
func (c *Coordinator) clear(ctx context.Context, r *run) error {
	if err := c.Sink.ClearDay(ctx, r.report.Day); err != nil {
		return errors.PersistenceErr("day clear", r.report.Day, err)
	}
	if err := c.Quarantine.Clear(ctx, r.report.Day); err != nil {
		r.logger.Warn("failed to clear quarantine", zap.Error(err))
	}
	return nil
}

func (c *Coordinator) normalize(ctx context.Context, r *run) error {
	day := r.report.Day
	raws, err := c.Source.LoadDay(ctx, day)
	if err != nil {
		return errors.SourceErr(day, err)
	}
	r.report.Counts.Read = len(raws)

	res, err := normalizer.NormalizeAll(ctx, raws, c.Conf.Workers)
	if err != nil {
		return err
	}

	r.canonical = make([]models.CanonicalTransaction, 0, len(res.Canonical))
	for _, tx := range res.Canonical {
		if tx.Day != day {
			r.report.Counts.OutOfDay++
			continue
		}
		r.canonical = append(r.canonical, tx)
	}
	r.report.Counts.Normalized = len(r.canonical)
	r.report.Counts.Dropped = len(res.Rejected)

	metrics.RecordsTotal.WithLabelValues("normalized").Add(float64(r.report.Counts.Normalized))
	metrics.RecordsTotal.WithLabelValues("dropped").Add(float64(r.report.Counts.Dropped))
	metrics.RecordsTotal.WithLabelValues("out_of_day").Add(float64(r.report.Counts.OutOfDay))
	for _, rej := range res.Rejected {
		metrics.DroppedByField.WithLabelValues(rej.Field).Inc()
	}

	if len(res.Rejected) > 0 {
		r.logger.Info("dropped invalid records", zap.Int("count", len(res.Rejected)))
		if err := c.Quarantine.Send(ctx, day, res.Rejected); err != nil {
			r.logger.Warn("failed to quarantine dropped records", zap.Error(err))
		}
	}

	if err := c.Sink.ReplaceTransactions(ctx, day, r.canonical); err != nil {
		return errors.PersistenceErr("normalized transactions", day, err)
	}
	return nil
}

func (c *Coordinator) aggregate(ctx context.Context, r *run) error {
	grouped, err := aggregator.AggregateParallel(ctx, r.canonical, c.Conf.Chunks)
	if err != nil {
		return err
	}
	r.metrics = aggregator.Sorted(grouped)
	r.report.Counts.MerchantDays = len(r.metrics)
	metrics.MerchantDays.Add(float64(len(r.metrics)))

	if err := c.Sink.ReplaceMetrics(ctx, r.report.Day, r.metrics); err != nil {
		return errors.PersistenceErr("merchant daily metrics", r.report.Day, err)
	}
	return nil
}

func (c *Coordinator) evaluate(ctx context.Context, r *run) error {
	// Alerts are stamped with the close of the evaluated day so a re-run
	// reproduces them exactly.
	generatedAt := r.start.Add(24 * time.Hour)
	alerts, err := evaluator.EvaluateAll(ctx, r.rules, r.metrics, generatedAt, c.Conf.Workers)
	if err != nil {
		return err
	}
	for _, a := range alerts {
		r.report.Counts.Alerts[a.RuleCode]++
		metrics.AlertsTotal.WithLabelValues(string(a.RuleCode)).Inc()
	}

	if err := c.Sink.ReplaceAlerts(ctx, r.report.Day, alerts); err != nil {
		return errors.PersistenceErr("alerts", r.report.Day, err)
	}
	return nil
}

// publish records the DONE report, which marks the day's output as final.
// The saved report carries its own PERSISTING duration.
func (c *Coordinator) publish(ctx context.Context, r *run) error {
	r.endStage(models.StatePersisting)
	final := r.snapshot()
	final.State = models.StateDone
	final.FinishedAt = c.now().UTC()
	if err := c.Sink.SaveRun(ctx, final); err != nil {
		return errors.PersistenceErr("run report", r.report.Day, err)
	}
	r.report.State = models.StateDone
	r.report.FinishedAt = final.FinishedAt
	return nil
}

func (c *Coordinator) fail(ctx context.Context, r *run, err error) {
	code := errors.KindOf(err)
	if errors.IsCanceled(err) {
		code = errors.Canceled
	}
	r.report.FailedStage = r.report.State
	r.report.State = models.StateFailed
	r.report.ErrorCode = string(code)
	r.report.Error = err.Error()
	r.report.FinishedAt = c.now().UTC()
	metrics.RunsTotal.WithLabelValues(string(models.StateFailed)).Inc()

	r.logger.Error("pipeline run failed",
		zap.String("stage", string(r.report.FailedStage)),
		zap.String("code", r.report.ErrorCode),
		zap.Error(err),
	)

	// The failed report is saved even when the run itself was canceled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := c.Sink.SaveRun(saveCtx, r.snapshot()); saveErr != nil {
		r.logger.Warn("failed to save failed run report", zap.Error(saveErr))
	}
}
