package models

import (
	// Go Internal Packages
	"encoding/json"
	"testing"
	"time"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal128KeepsExactAmounts(t *testing.T) {
	for _, s := range []string{"0", "0.01", "125.46", "1500.00", "99999999999.999"} {
		d := decimal.RequireFromString(s)
		v, err := toDecimal128(d)
		require.NoError(t, err)
		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), "%s came back as %s", s, back)
	}
}

func TestDecimal128RejectsOverlongAmounts(t *testing.T) {
	huge := decimal.RequireFromString("123456789012345678901234567890123456.78")
	assert.False(t, FitsDecimal128(huge))

	tx := CanonicalTransaction{TxID: "t1", Amount: huge}
	_, err := tx.Transform()
	assert.ErrorContains(t, err, "does not fit a decimal128")

	m := MerchantDailyMetric{MerchantID: "M1", TotalAmount: huge}
	_, err = m.Transform()
	assert.ErrorContains(t, err, "sum_amount")

	assert.True(t, FitsDecimal128(decimal.RequireFromString("1234567890123456789012345678901234")))
}

func TestMongoMetricTransform(t *testing.T) {
	m := MerchantDailyMetric{
		MerchantID:  "M1",
		Day:         "2025-12-18",
		TxCount:     3,
		ApprovedSum: decimal.RequireFromString("110.00"),
		TotalAmount: decimal.RequireFromString("400.75"),
		AvgAmount:   decimal.RequireFromString("133.58"),
		MaxAmount:   decimal.RequireFromString("250.50"),
		DeclineRate: 1.0 / 3,
	}
	doc, err := m.Transform()
	require.NoError(t, err)
	got, err := doc.Metric()
	require.NoError(t, err)
	assert.Equal(t, m.MerchantID, got.MerchantID)
	assert.Equal(t, m.TxCount, got.TxCount)
	assert.True(t, m.TotalAmount.Equal(got.TotalAmount))
	assert.True(t, m.MaxAmount.Equal(got.MaxAmount))
	assert.Equal(t, m.DeclineRate, got.DeclineRate)
}

func TestMongoRunKeepsStageDurations(t *testing.T) {
	r := RunReport{
		RunID:  "r1",
		Day:    "2025-12-18",
		State:  StateDone,
		Stages: map[RunState]time.Duration{StateNormalizing: 1500 * time.Millisecond},
	}
	doc := r.Transform()
	assert.Equal(t, int64(1500), doc.StagesMS["NORMALIZING"])
	assert.Equal(t, 1500*time.Millisecond, doc.Report().Stages[StateNormalizing])
}

func TestDecodeRawKeepsNumbers(t *testing.T) {
	raw, err := DecodeRaw([]byte(`{"tx_id":"t1","amount":12.345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.345678901234567890"), raw["amount"])

	_, err = DecodeRaw([]byte(`[1,2]`))
	assert.Error(t, err)
}
