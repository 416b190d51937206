package evaluator

import (
	// Go Internal Packages
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// alertNamespace seeds the name based alert ids, so re-running a day yields the same ids.
var alertNamespace = uuid.MustParse("5b0c3f2e-8d4a-4f6e-9c1b-7a2d3e4f5a6b")

// AlertID returns the deterministic id of the alert for merchant, day and rule.
func AlertID(merchant, day string, code models.RuleCode) string {
	name := strings.Join([]string{merchant, day, string(code)}, "|")
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}

// Evaluator applies the rule table to merchant-day metrics. The table can be
// swapped at runtime when thresholds are reloaded.
type Evaluator struct {
	rules atomic.Pointer[[]Rule]
}

// New returns an Evaluator using th.
func New(th Thresholds) *Evaluator {
	e := &Evaluator{}
	e.SetThresholds(th)
	return e
}

// SetThresholds atomically replaces the rule table.
func (e *Evaluator) SetThresholds(th Thresholds) {
	table := Table(th)
	e.rules.Store(&table)
}

// Snapshot returns the current rule table. A run evaluates every metric
// against one snapshot.
func (e *Evaluator) Snapshot() []Rule {
	return *e.rules.Load()
}

// Evaluate applies the current rule table to m.
func (e *Evaluator) Evaluate(m models.MerchantDailyMetric, generatedAt time.Time) ([]models.Alert, error) {
	return Evaluate(e.Snapshot(), m, generatedAt)
}

// Evaluate checks the metric invariants and returns one alert per rule that
// holds, in table order.
func Evaluate(rules []Rule, m models.MerchantDailyMetric, generatedAt time.Time) ([]models.Alert, error) {
	if err := checkInvariants(m); err != nil {
		return nil, err
	}
	var alerts []models.Alert
	for _, r := range rules {
		if !r.Holds(m) {
			continue
		}
		alerts = append(alerts, models.Alert{
			AlertID:     AlertID(m.MerchantID, m.Day, r.Code),
			MerchantID:  m.MerchantID,
			Day:         m.Day,
			RuleCode:    r.Code,
			Severity:    r.Severity,
			Details:     r.Details(m),
			GeneratedAt: generatedAt,
		})
	}
	return alerts, nil
}

func checkInvariants(m models.MerchantDailyMetric) error {
	var reason string
	switch {
	case m.MerchantID == "" || m.Day == "":
		reason = "missing merchant-day key"
	case m.TxCount < 0 || m.DeclineCount < 0 || m.UniqueCountries < 0 || m.UniqueCustomers < 0 || m.UniqueDevices < 0:
		reason = "negative count"
	case m.DeclineCount > m.TxCount:
		reason = "decline count exceeds transaction count"
	case math.IsNaN(m.DeclineRate) || m.DeclineRate < 0 || m.DeclineRate > 1:
		reason = fmt.Sprintf("decline rate %v outside [0,1]", m.DeclineRate)
	case m.MaxAmount.IsNegative() || m.ApprovedSum.IsNegative():
		reason = "negative amount"
	default:
		return nil
	}
	return errors.E(errors.Evaluation, fmt.Sprintf("metric %s/%s: %s", m.MerchantID, m.Day, reason), nil)
}

// EvaluateAll evaluates metrics with up to workers goroutines against a single
// snapshot of the rule table. Alerts are ordered by metric order, then rule order.
func EvaluateAll(ctx context.Context, rules []Rule, metrics []models.MerchantDailyMetric, generatedAt time.Time, workers int) ([]models.Alert, error) {
	perMetric := make([][]models.Alert, len(metrics))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range utils.Chunks(len(metrics), workers) {
		g.Go(func() error {
			for i := c[0]; i < c[1]; i++ {
				if err := gctx.Err(); err != nil {
					return errors.E(errors.Canceled, "evaluate", err)
				}
				alerts, err := Evaluate(rules, metrics[i], generatedAt)
				if err != nil {
					return err
				}
				perMetric[i] = alerts
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.Alert
	for _, alerts := range perMetric {
		out = append(out, alerts...)
	}
	return out, nil
}
