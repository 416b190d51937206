// Package api exposes the pipeline trigger and read-only views of published
// days over HTTP.
package api

import (
	// Go Internal Packages
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTopN    = 10
	maxTopN        = 100
	defaultAlerts  = 100
	maxAlertsLimit = 1000
)

type Runner interface {
	Run(ctx context.Context, day string) (models.RunReport, error)
}

// Reader is the read side of the pipeline's store.
type Reader interface {
	LatestRun(ctx context.Context, day string) (models.RunReport, error)
	Days(ctx context.Context) ([]string, error)
	MetricsByDay(ctx context.Context, day string) ([]models.MerchantDailyMetric, error)
	MetricsByMerchant(ctx context.Context, merchantID, from, to string) ([]models.MerchantDailyMetric, error)
	Alerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	runner Runner
	store  Reader
	logger *zap.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(runner Runner, store Reader, logger *zap.Logger) http.Handler {
	h := &Handler{runner: runner, store: store, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/pipeline/run", h.runPipeline)
	h.mux.HandleFunc("GET /v1/pipeline/runs/{dt}", h.getRun)
	h.mux.HandleFunc("GET /v1/metrics", h.topMerchants)
	h.mux.HandleFunc("GET /v1/merchants/{id}/series", h.merchantSeries)
	h.mux.HandleFunc("GET /v1/alerts", h.listAlerts)
	h.mux.HandleFunc("GET /v1/stats/summary", h.summary)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

func dayParam(name, value string) (string, error) {
	if value == "" {
		return "", errors.EmptyParamErr(name)
	}
	if _, err := utils.ParseDay(value); err != nil {
		return "", errors.InvalidParamsErr(fmt.Errorf("%s: %w", name, err))
	}
	return value, nil
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, errors.InvalidParamsErr(fmt.Errorf("%s must be an integer in [%d, %d]", name, lo, hi))
	}
	return n, nil
}

// published fails unless the latest run of day reached DONE.
func (h *Handler) published(ctx context.Context, day string) error {
	run, err := h.store.LatestRun(ctx, day)
	if err != nil {
		return err
	}
	if run.State != models.StateDone {
		return errors.E(errors.Conflict, fmt.Sprintf("output for %s is not published (latest run is %s)", day, run.State), nil)
	}
	return nil
}

// publishedDays reports, per day, whether its output is final.
type publishedDays struct {
	h    *Handler
	seen map[string]bool
}

func (p *publishedDays) ok(ctx context.Context, day string) bool {
	if v, hit := p.seen[day]; hit {
		return v
	}
	v := p.h.published(ctx, day) == nil
	p.seen[day] = v
	return v
}

// POST /v1/pipeline/run?dt= runs the pipeline for a day synchronously.
func (h *Handler) runPipeline(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam("dt", r.URL.Query().Get("dt"))
	if err != nil {
		writeErr(w, err)
		return
	}

	report, err := h.runner.Run(r.Context(), day)
	if err != nil {
		if report.RunID == "" {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /v1/pipeline/runs/{dt} returns the latest run report of the day.
func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam("dt", r.PathValue("dt"))
	if err != nil {
		writeErr(w, err)
		return
	}
	report, err := h.store.LatestRun(r.Context(), day)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var sortKeys = map[string]func(a, b models.MerchantDailyMetric) int{
	"tx_count":   func(a, b models.MerchantDailyMetric) int { return a.TxCount - b.TxCount },
	"sum_amount": func(a, b models.MerchantDailyMetric) int { return a.TotalAmount.Cmp(b.TotalAmount) },
	"avg_amount": func(a, b models.MerchantDailyMetric) int { return a.AvgAmount.Cmp(b.AvgAmount) },
	"max_amount": func(a, b models.MerchantDailyMetric) int { return a.MaxAmount.Cmp(b.MaxAmount) },
}

// GET /v1/metrics?dt=&sort=&limit= returns the top merchants of a day.
func (h *Handler) topMerchants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := dayParam("dt", r.URL.Query().Get("dt"))
	if err != nil {
		writeErr(w, err)
		return
	}
	key := r.URL.Query().Get("sort")
	if key == "" {
		key = "tx_count"
	}
	cmp, ok := sortKeys[key]
	if !ok {
		writeError(w, http.StatusBadRequest, "sort must be one of tx_count, sum_amount, avg_amount, max_amount")
		return
	}
	limit, err := intParam(r, "limit", defaultTopN, 1, maxTopN)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.published(ctx, day); err != nil {
		writeErr(w, err)
		return
	}

	ms, err := h.store.MetricsByDay(ctx, day)
	if err != nil {
		writeErr(w, err)
		return
	}
	// Highest first, merchant id breaks ties.
	sort.SliceStable(ms, func(i, j int) bool {
		if c := cmp(ms[i], ms[j]); c != 0 {
			return c > 0
		}
		return ms[i].MerchantID < ms[j].MerchantID
	})
	if len(ms) > limit {
		ms = ms[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dt":        day,
		"sort":      key,
		"limit":     limit,
		"merchants": nonNil(ms),
	})
}

// GET /v1/merchants/{id}/series?from=&to= returns a merchant's published days.
func (h *Handler) merchantSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	merchantID := r.PathValue("id")
	from, err := dayParam("from", r.URL.Query().Get("from"))
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := dayParam("to", r.URL.Query().Get("to"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	ms, err := h.store.MetricsByMerchant(ctx, merchantID, from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	pub := &publishedDays{h: h, seen: map[string]bool{}}
	series := make([]models.MerchantDailyMetric, 0, len(ms))
	for _, m := range ms {
		if pub.ok(ctx, m.Day) {
			series = append(series, m)
		}
	}
	if len(series) == 0 {
		writeErr(w, errors.NotFoundErr(fmt.Sprintf("data for merchant %s between %s and %s", merchantID, from, to)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"merchant_id": merchantID,
		"from":        from,
		"to":          to,
		"series":      series,
	})
}

// GET /v1/alerts?dt=&merchant_id=&rule_code=&severity_min=&limit=
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	f := models.AlertFilter{MerchantID: q.Get("merchant_id"), RuleCode: models.RuleCode(q.Get("rule_code"))}

	if dt := q.Get("dt"); dt != "" {
		day, err := dayParam("dt", dt)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := h.published(ctx, day); err != nil {
			writeErr(w, err)
			return
		}
		f.Day = day
	}
	if f.RuleCode != "" && !knownRule(f.RuleCode) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown rule_code %q", f.RuleCode))
		return
	}
	var err error
	if f.SeverityMin, err = intParam(r, "severity_min", 0, 0, 3); err != nil {
		writeErr(w, err)
		return
	}
	if f.Limit, err = intParam(r, "limit", defaultAlerts, 1, maxAlertsLimit); err != nil {
		writeErr(w, err)
		return
	}

	// Without a day filter, unpublished days are skipped, so the limit is
	// applied after filtering.
	limit := f.Limit
	if f.Day == "" {
		f.Limit = 0
	}
	alerts, err := h.store.Alerts(ctx, f)
	if err != nil {
		writeErr(w, err)
		return
	}
	pub := &publishedDays{h: h, seen: map[string]bool{}}
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if len(out) == limit {
			break
		}
		if f.Day != "" || pub.ok(ctx, a.Day) {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(out),
		"alerts": out,
	})
}

func knownRule(code models.RuleCode) bool {
	for _, c := range models.RuleCodes {
		if c == code {
			return true
		}
	}
	return false
}

type metricsSummary struct {
	TotalMerchants    int             `json:"total_merchants"`
	TotalTransactions int             `json:"total_transactions"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AvgDeclineRate    float64         `json:"avg_decline_rate"`
}

type alertsSummary struct {
	TotalAlerts    int `json:"total_alerts"`
	HighSeverity   int `json:"high_severity"`
	MediumSeverity int `json:"medium_severity"`
	LowSeverity    int `json:"low_severity"`
}

type ruleCount struct {
	RuleCode models.RuleCode `json:"rule_code"`
	Count    int             `json:"count"`
}

// GET /v1/stats/summary?dt= summarises a day, the latest published one by default.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day := r.URL.Query().Get("dt")
	if day == "" {
		latest, err := h.latestPublished(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		day = latest
	} else {
		var err error
		if day, err = dayParam("dt", day); err != nil {
			writeErr(w, err)
			return
		}
		if err := h.published(ctx, day); err != nil {
			writeErr(w, err)
			return
		}
	}

	ms, err := h.store.MetricsByDay(ctx, day)
	if err != nil {
		writeErr(w, err)
		return
	}
	alerts, err := h.store.Alerts(ctx, models.AlertFilter{Day: day})
	if err != nil {
		writeErr(w, err)
		return
	}

	msum := metricsSummary{TotalMerchants: len(ms), TotalAmount: decimal.Zero}
	for _, m := range ms {
		msum.TotalTransactions += m.TxCount
		msum.TotalAmount = msum.TotalAmount.Add(m.TotalAmount)
		msum.AvgDeclineRate += m.DeclineRate
	}
	if len(ms) > 0 {
		msum.AvgDeclineRate /= float64(len(ms))
	}

	asum := alertsSummary{TotalAlerts: len(alerts)}
	byRule := make(map[models.RuleCode]int)
	for _, a := range alerts {
		switch a.Severity {
		case 3:
			asum.HighSeverity++
		case 2:
			asum.MediumSeverity++
		case 1:
			asum.LowSeverity++
		}
		byRule[a.RuleCode]++
	}
	breakdown := make([]ruleCount, 0, len(byRule))
	for code, n := range byRule {
		breakdown = append(breakdown, ruleCount{RuleCode: code, Count: n})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].RuleCode < breakdown[j].RuleCode
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dt":             day,
		"metrics":        msum,
		"alerts":         asum,
		"rule_breakdown": breakdown,
	})
}

func (h *Handler) latestPublished(ctx context.Context) (string, error) {
	days, err := h.store.Days(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range days {
		if h.published(ctx, d) == nil {
			return d, nil
		}
	}
	return "", errors.NotFoundErr("published day")
}

// GET /healthz is the liveness probe.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
