package models

import (
	// Go Internal Packages
	"fmt"
	"time"

	// External Packages
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RawRecord is one ingested payload placed in its day partition.
type RawRecord struct {
	Day     string `json:"dt" bson:"dt"`
	Hour    int    `json:"hour" bson:"hour"`
	Payload string `json:"payload" bson:"payload"`
}

type MongoTransaction struct {
	TxID          string               `bson:"tx_id"`
	Timestamp     time.Time            `bson:"ts"`
	Day           string               `bson:"dt"`
	Hour          int                  `bson:"hour"`
	CustomerID    string               `bson:"customer_id"`
	MerchantID    string               `bson:"merchant_id"`
	Country       string               `bson:"country"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Currency      string               `bson:"currency,omitempty"`
	PaymentMethod string               `bson:"payment_method,omitempty"`
	DeviceID      string               `bson:"device_id,omitempty"`
	IP            string               `bson:"ip,omitempty"`
	Status        Status               `bson:"status"`
}

type MongoMetric struct {
	MerchantID      string               `bson:"merchant_id"`
	Day             string               `bson:"dt"`
	TxCount         int                  `bson:"tx_count"`
	ApprovedSum     primitive.Decimal128 `bson:"approved_sum"`
	TotalAmount     primitive.Decimal128 `bson:"sum_amount"`
	AvgAmount       primitive.Decimal128 `bson:"avg_amount"`
	MaxAmount       primitive.Decimal128 `bson:"max_amount"`
	UniqueCountries int                  `bson:"unique_countries"`
	UniqueCustomers int                  `bson:"unique_customers"`
	UniqueDevices   int                  `bson:"unique_devices"`
	DeclineCount    int                  `bson:"decline_count"`
	DeclineRate     float64              `bson:"decline_rate"`
}

type MongoAlert struct {
	AlertID     string         `bson:"_id"`
	MerchantID  string         `bson:"merchant_id"`
	Day         string         `bson:"dt"`
	RuleCode    RuleCode       `bson:"rule_code"`
	Severity    int            `bson:"severity"`
	Details     map[string]any `bson:"details"`
	GeneratedAt time.Time      `bson:"generated_at"`
}

// MongoRun stores a run report. Stage durations are kept in milliseconds.
type MongoRun struct {
	RunID       string           `bson:"_id"`
	Day         string           `bson:"dt"`
	State       RunState         `bson:"state"`
	FailedStage RunState         `bson:"failed_stage,omitempty"`
	ErrorCode   string           `bson:"error_code,omitempty"`
	Error       string           `bson:"error,omitempty"`
	Counts      RunCounts        `bson:"counts"`
	StagesMS    map[string]int64 `bson:"stage_durations_ms"`
	StartedAt   time.Time        `bson:"started_at"`
	FinishedAt  time.Time        `bson:"finished_at"`
}

// FitsDecimal128 reports whether d can be stored as a Decimal128 without
// losing digits.
func FitsDecimal128(d decimal.Decimal) bool {
	_, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	return ok
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	if !ok {
		return primitive.Decimal128{}, fmt.Errorf("%s does not fit a decimal128", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	bi, exp, err := v.BigInt()
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimal128 %s: %w", v, err)
	}
	return decimal.NewFromBigInt(bi, int32(exp)), nil
}

func (t *CanonicalTransaction) Transform() (MongoTransaction, error) {
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return MongoTransaction{}, fmt.Errorf("tx %s amount: %w", t.TxID, err)
	}
	return MongoTransaction{
		TxID:          t.TxID,
		Timestamp:     t.Timestamp,
		Day:           t.Day,
		Hour:          t.Hour,
		CustomerID:    t.CustomerID,
		MerchantID:    t.MerchantID,
		Country:       t.Country,
		Amount:        amount,
		Currency:      t.Currency,
		PaymentMethod: t.PaymentMethod,
		DeviceID:      t.DeviceID,
		IP:            t.IP,
		Status:        t.Status,
	}, nil
}

func (m *MongoTransaction) Canonical() (CanonicalTransaction, error) {
	amount, err := fromDecimal128(m.Amount)
	if err != nil {
		return CanonicalTransaction{}, fmt.Errorf("tx %s amount: %w", m.TxID, err)
	}
	return CanonicalTransaction{
		TxID:          m.TxID,
		Timestamp:     m.Timestamp.UTC(),
		Day:           m.Day,
		Hour:          m.Hour,
		CustomerID:    m.CustomerID,
		MerchantID:    m.MerchantID,
		Country:       m.Country,
		Amount:        amount,
		Currency:      m.Currency,
		PaymentMethod: m.PaymentMethod,
		DeviceID:      m.DeviceID,
		IP:            m.IP,
		Status:        m.Status,
	}, nil
}

// decimalField pairs decimal amounts with their stored form for conversion
// in either direction.
type decimalField struct {
	name string
	dec  *decimal.Decimal
	d128 *primitive.Decimal128
}

func metricFields(m *MerchantDailyMetric, doc *MongoMetric) []decimalField {
	return []decimalField{
		{"approved_sum", &m.ApprovedSum, &doc.ApprovedSum},
		{"sum_amount", &m.TotalAmount, &doc.TotalAmount},
		{"avg_amount", &m.AvgAmount, &doc.AvgAmount},
		{"max_amount", &m.MaxAmount, &doc.MaxAmount},
	}
}

func (m *MerchantDailyMetric) Transform() (MongoMetric, error) {
	doc := MongoMetric{
		MerchantID:      m.MerchantID,
		Day:             m.Day,
		TxCount:         m.TxCount,
		UniqueCountries: m.UniqueCountries,
		UniqueCustomers: m.UniqueCustomers,
		UniqueDevices:   m.UniqueDevices,
		DeclineCount:    m.DeclineCount,
		DeclineRate:     m.DeclineRate,
	}
	for _, f := range metricFields(m, &doc) {
		v, err := toDecimal128(*f.dec)
		if err != nil {
			return MongoMetric{}, fmt.Errorf("merchant %s %s: %w", m.MerchantID, f.name, err)
		}
		*f.d128 = v
	}
	return doc, nil
}

func (m *MongoMetric) Metric() (MerchantDailyMetric, error) {
	out := MerchantDailyMetric{
		MerchantID:      m.MerchantID,
		Day:             m.Day,
		TxCount:         m.TxCount,
		UniqueCountries: m.UniqueCountries,
		UniqueCustomers: m.UniqueCustomers,
		UniqueDevices:   m.UniqueDevices,
		DeclineCount:    m.DeclineCount,
		DeclineRate:     m.DeclineRate,
	}
	for _, f := range metricFields(&out, m) {
		v, err := fromDecimal128(*f.d128)
		if err != nil {
			return MerchantDailyMetric{}, fmt.Errorf("merchant %s %s: %w", m.MerchantID, f.name, err)
		}
		*f.dec = v
	}
	return out, nil
}

func (a *Alert) Transform() MongoAlert {
	return MongoAlert{
		AlertID:     a.AlertID,
		MerchantID:  a.MerchantID,
		Day:         a.Day,
		RuleCode:    a.RuleCode,
		Severity:    a.Severity,
		Details:     a.Details,
		GeneratedAt: a.GeneratedAt,
	}
}

func (m *MongoAlert) Alert() Alert {
	return Alert{
		AlertID:     m.AlertID,
		MerchantID:  m.MerchantID,
		Day:         m.Day,
		RuleCode:    m.RuleCode,
		Severity:    m.Severity,
		Details:     m.Details,
		GeneratedAt: m.GeneratedAt.UTC(),
	}
}

func (r *RunReport) Transform() MongoRun {
	stages := make(map[string]int64, len(r.Stages))
	for s, d := range r.Stages {
		stages[string(s)] = d.Milliseconds()
	}
	return MongoRun{
		RunID:       r.RunID,
		Day:         r.Day,
		State:       r.State,
		FailedStage: r.FailedStage,
		ErrorCode:   r.ErrorCode,
		Error:       r.Error,
		Counts:      r.Counts,
		StagesMS:    stages,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func (m *MongoRun) Report() RunReport {
	stages := make(map[RunState]time.Duration, len(m.StagesMS))
	for s, ms := range m.StagesMS {
		stages[RunState(s)] = time.Duration(ms) * time.Millisecond
	}
	return RunReport{
		RunID:       m.RunID,
		Day:         m.Day,
		State:       m.State,
		FailedStage: m.FailedStage,
		ErrorCode:   m.ErrorCode,
		Error:       m.Error,
		Counts:      m.Counts,
		Stages:      stages,
		StartedAt:   m.StartedAt.UTC(),
		FinishedAt:  m.FinishedAt.UTC(),
	}
}
