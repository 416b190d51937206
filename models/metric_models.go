package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/shopspring/decimal"
)

// MerchantDay is the aggregation key.
type MerchantDay struct {
	MerchantID string
	Day        string
}

// MerchantDailyMetric summarises one merchant's transactions for one UTC day.
type MerchantDailyMetric struct {
	MerchantID      string          `json:"merchant_id"`
	Day             string          `json:"dt"`
	TxCount         int             `json:"tx_count"`
	ApprovedSum     decimal.Decimal `json:"approved_sum"`
	TotalAmount     decimal.Decimal `json:"sum_amount"`
	AvgAmount       decimal.Decimal `json:"avg_amount"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
	UniqueCountries int             `json:"unique_countries"`
	UniqueCustomers int             `json:"unique_customers"`
	UniqueDevices   int             `json:"unique_devices"`
	DeclineCount    int             `json:"decline_count"`
	DeclineRate     float64         `json:"decline_rate"`
}

func (m MerchantDailyMetric) Key() MerchantDay {
	return MerchantDay{MerchantID: m.MerchantID, Day: m.Day}
}

type RuleCode string

const (
	RuleHighAmount   RuleCode = "HIGH_AMOUNT"
	RuleBurst        RuleCode = "BURST"
	RuleMultiCountry RuleCode = "MULTI_COUNTRY"
	RuleHighDecline  RuleCode = "HIGH_DECLINE"
)

// RuleCodes lists every rule code in reporting order.
var RuleCodes = []RuleCode{RuleHighAmount, RuleBurst, RuleMultiCountry, RuleHighDecline}

// Alert is emitted when a fraud-risk rule holds for a merchant-day.
type Alert struct {
	AlertID     string         `json:"alert_id"`
	MerchantID  string         `json:"merchant_id"`
	Day         string         `json:"dt"`
	RuleCode    RuleCode       `json:"rule_code"`
	Severity    int            `json:"severity"`
	Details     map[string]any `json:"details"`
	GeneratedAt time.Time      `json:"generated_at"`
}
