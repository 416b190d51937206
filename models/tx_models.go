package models

import (
	// Go Internal Packages
	"bytes"
	"encoding/json"
	"time"

	// External Packages
	"github.com/shopspring/decimal"
)

// DayLayout is the calendar day format used for partitions and keys.
const DayLayout = "2006-01-02"

type Record struct {
	Key   []byte
	Value []byte
	Topic string
}

// RawTransaction is an untyped transaction as it arrives from ingestion.
// Nothing about its shape is trusted until it passes the normalizer.
type RawTransaction map[string]any

// String returns the value of a string field and whether it was a string.
func (r RawTransaction) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DecodeRaw parses a JSON object keeping numbers as json.Number, so amounts
// are never rounded through float64.
func DecodeRaw(payload []byte) (RawTransaction, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw RawTransaction
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusOther    Status = "OTHER"
)

// CanonicalTransaction is a validated, normalized transaction ready for aggregation.
type CanonicalTransaction struct {
	TxID          string          `json:"tx_id"`
	Timestamp     time.Time       `json:"ts"`
	Day           string          `json:"dt"`
	Hour          int             `json:"hour"`
	CustomerID    string          `json:"customer_id"`
	MerchantID    string          `json:"merchant_id"`
	Country       string          `json:"country"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	DeviceID      string          `json:"device_id,omitempty"`
	IP            string          `json:"ip,omitempty"`
	Status        Status          `json:"status"`
}

// Rejected is a raw record the normalizer refused, kept for quarantine.
type Rejected struct {
	Index  int            `json:"index"`
	Field  string         `json:"field"`
	Reason string         `json:"reason"`
	Raw    RawTransaction `json:"raw"`
}
