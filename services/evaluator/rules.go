package evaluator

import (
	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/shopspring/decimal"
)

// Thresholds are the tunable limits of the rule table.
type Thresholds struct {
	HighAmount      decimal.Decimal
	BurstCount      int
	MultiCountry    int
	HighDeclineRate float64
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAmount:      decimal.NewFromInt(1000),
		BurstCount:      30,
		MultiCountry:    3,
		HighDeclineRate: 0.5,
	}
}

// Rule is one row of the rule table.
type Rule struct {
	Code     models.RuleCode
	Severity int
	Holds    func(m models.MerchantDailyMetric) bool
	Details  func(m models.MerchantDailyMetric) map[string]any
}

// Table builds the ordered rule table for th. New rules are new rows.
func Table(th Thresholds) []Rule {
	return []Rule{
		{
			Code:     models.RuleHighAmount,
			Severity: 3,
			Holds:    func(m models.MerchantDailyMetric) bool { return m.MaxAmount.GreaterThan(th.HighAmount) },
			Details: func(m models.MerchantDailyMetric) map[string]any {
				return map[string]any{"max_amount": m.MaxAmount.InexactFloat64(), "threshold": th.HighAmount.InexactFloat64()}
			},
		},
		{
			Code:     models.RuleBurst,
			Severity: 2,
			Holds:    func(m models.MerchantDailyMetric) bool { return m.TxCount > th.BurstCount },
			Details: func(m models.MerchantDailyMetric) map[string]any {
				return map[string]any{"tx_count": m.TxCount, "threshold": th.BurstCount}
			},
		},
		{
			Code:     models.RuleMultiCountry,
			Severity: 2,
			Holds:    func(m models.MerchantDailyMetric) bool { return m.UniqueCountries >= th.MultiCountry },
			Details: func(m models.MerchantDailyMetric) map[string]any {
				return map[string]any{"unique_countries": m.UniqueCountries, "threshold": th.MultiCountry}
			},
		},
		{
			Code:     models.RuleHighDecline,
			Severity: 3,
			Holds:    func(m models.MerchantDailyMetric) bool { return m.DeclineRate > th.HighDeclineRate },
			Details: func(m models.MerchantDailyMetric) map[string]any {
				return map[string]any{
					"decline_rate":  m.DeclineRate,
					"decline_count": m.DeclineCount,
					"tx_count":      m.TxCount,
					"threshold":     th.HighDeclineRate,
				}
			},
		},
	}
}
