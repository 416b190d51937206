package normalizer

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() models.RawTransaction {
	return models.RawTransaction{
		"tx_id":          "6f1c2b1e-0d7a-4c59-9a51-2a2f7a0c1d11",
		"ts":             "2025-12-18T14:30:00Z",
		"customer_id":    "CUSTOMER_00042",
		"merchant_id":    "MERCHANT_0007",
		"country":        " fr ",
		"amount":         json.Number("125.456"),
		"currency":       "eur",
		"payment_method": "credit_card",
		"device_id":      "DEVICE_1234",
		"ip":             "10.0.0.1",
		"status":         "approved",
	}
}

func TestNormalizeValid(t *testing.T) {
	tx, err := Normalize(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "6f1c2b1e-0d7a-4c59-9a51-2a2f7a0c1d11", tx.TxID)
	assert.Equal(t, time.Date(2025, 12, 18, 14, 30, 0, 0, time.UTC), tx.Timestamp)
	assert.Equal(t, "2025-12-18", tx.Day)
	assert.Equal(t, 14, tx.Hour)
	assert.Equal(t, "FR", tx.Country)
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, "CREDIT_CARD", tx.PaymentMethod)
	assert.True(t, decimal.RequireFromString("125.46").Equal(tx.Amount), tx.Amount.String())
	assert.Equal(t, models.StatusApproved, tx.Status)
}

func TestNormalizeTimestampOffsetsConvertToUTC(t *testing.T) {
	raw := validRaw()
	raw["ts"] = "2025-12-19T01:15:00+03:00"
	tx, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-18", tx.Day)
	assert.Equal(t, 22, tx.Hour)

	raw["ts"] = "2025-12-18T23:59:59.123456"
	tx, err = Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tx.Timestamp.Location())
}

func TestNormalizeAmountRoundsToMinorUnit(t *testing.T) {
	tests := []struct {
		currency string
		amount   any
		want     string
	}{
		{"USD", json.Number("10.005"), "10.01"},
		{"JPY", json.Number("1500.6"), "1501"},
		{"KWD", "3.14159", "3.142"},
		{"", float64(7.5), "7.5"},
		{"USD", 0, "0"},
		{"USD", json.Number("12345678901234567890123456789012.34"), "12345678901234567890123456789012.34"},
	}
	for _, tt := range tests {
		raw := validRaw()
		raw["currency"] = tt.currency
		raw["amount"] = tt.amount
		tx, err := Normalize(raw)
		require.NoError(t, err, tt.currency)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(tx.Amount), "%s: got %s", tt.currency, tx.Amount)
	}
}

func TestNormalizeStatusMapping(t *testing.T) {
	for raw, want := range map[string]models.Status{
		"APPROVED":  models.StatusApproved,
		" declined": models.StatusDeclined,
		"refunded":  models.StatusOther,
		"":          models.StatusOther,
	} {
		r := validRaw()
		r["status"] = raw
		tx, err := Normalize(r)
		require.NoError(t, err)
		assert.Equal(t, want, tx.Status, raw)
	}
}

func TestNormalizeRejectsFirstFailingField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(models.RawTransaction)
		field  string
	}{
		{"missing id", func(r models.RawTransaction) { delete(r, "tx_id") }, "tx_id"},
		{"malformed id", func(r models.RawTransaction) { r["tx_id"] = "bad id with spaces" }, "tx_id"},
		{"numeric id", func(r models.RawTransaction) { r["tx_id"] = 42.0 }, "tx_id"},
		{"bad ts", func(r models.RawTransaction) { r["ts"] = "yesterday" }, "ts"},
		{"missing customer", func(r models.RawTransaction) { delete(r, "customer_id") }, "customer_id"},
		{"empty merchant", func(r models.RawTransaction) { r["merchant_id"] = "  " }, "merchant_id"},
		{"null country", func(r models.RawTransaction) { r["country"] = nil }, "country"},
		{"negative amount", func(r models.RawTransaction) { r["amount"] = json.Number("-1") }, "amount"},
		{"text amount", func(r models.RawTransaction) { r["amount"] = "ten" }, "amount"},
		{"bool amount", func(r models.RawTransaction) { r["amount"] = true }, "amount"},
		{"amount beyond 34 digits", func(r models.RawTransaction) {
			r["amount"] = json.Number("123456789012345678901234567890123456.78")
		}, "amount"},
		{"missing status", func(r models.RawTransaction) { delete(r, "status") }, "status"},
		{"two failures reports first", func(r models.RawTransaction) {
			r["ts"] = "nope"
			r["amount"] = "-5"
		}, "ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)
			_, err := Normalize(raw)
			require.Error(t, err)
			assert.Equal(t, errors.Invalid, errors.KindOf(err))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNormalizeAllKeepsOrderAndDropsDuplicates(t *testing.T) {
	var raws []models.RawTransaction
	for i := 0; i < 25; i++ {
		r := validRaw()
		r["tx_id"] = "tx-" + strings.Repeat("a", i+1)
		raws = append(raws, r)
	}
	bad := validRaw()
	bad["amount"] = "-3"
	dup := validRaw()
	dup["tx_id"] = "tx-a"
	raws = append(raws, bad, dup)

	res, err := NormalizeAll(context.Background(), raws, 4)
	require.NoError(t, err)
	require.Len(t, res.Canonical, 25)
	for i, tx := range res.Canonical {
		assert.Equal(t, "tx-"+strings.Repeat("a", i+1), tx.TxID)
	}

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 25, res.Rejected[0].Index)
	assert.Equal(t, "amount", res.Rejected[0].Field)
	assert.Equal(t, 26, res.Rejected[1].Index)
	assert.Equal(t, "tx_id", res.Rejected[1].Field)
	assert.Equal(t, "duplicate", res.Rejected[1].Reason)
}

func TestNormalizeAllAllInvalid(t *testing.T) {
	raws := []models.RawTransaction{{}, {"tx_id": "x"}, {"garbage": []any{1, 2}}}
	res, err := NormalizeAll(context.Background(), raws, 2)
	require.NoError(t, err)
	assert.Empty(t, res.Canonical)
	assert.Len(t, res.Rejected, 3)
}

func TestNormalizeAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NormalizeAll(ctx, []models.RawTransaction{validRaw()}, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}
