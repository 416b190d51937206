// Package normalizer is the only boundary where an untyped raw transaction
// becomes a canonical one.
package normalizer

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ValidationError names the first field of a raw record that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return errors.E(errors.Invalid, "invalid transaction", &ValidationError{Field: field, Reason: reason})
}

var txIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// zoned layouts carry their own offset, naive ones are read as UTC.
var (
	zonedLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00"}
	naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}
)

// minorUnits overrides the default of two decimal places per currency.
var minorUnits = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// MinorUnit returns the number of decimal places of the currency.
func MinorUnit(currency string) int32 {
	if places, ok := minorUnits[currency]; ok {
		return places
	}
	return 2
}

// Normalize validates raw and converts it to a CanonicalTransaction. Fields are
// checked in a fixed order and the returned error names the first failure.
func Normalize(raw models.RawTransaction) (models.CanonicalTransaction, error) {
	var tx models.CanonicalTransaction

	id, err := requiredString(raw, "tx_id")
	if err != nil {
		return tx, err
	}
	if !txIDPattern.MatchString(id) {
		return tx, invalid("tx_id", "malformed identifier")
	}

	ts, err := Timestamp(raw)
	if err != nil {
		return tx, err
	}

	customer, err := requiredString(raw, "customer_id")
	if err != nil {
		return tx, err
	}
	merchant, err := requiredString(raw, "merchant_id")
	if err != nil {
		return tx, err
	}
	country, err := requiredString(raw, "country")
	if err != nil {
		return tx, err
	}

	currency := optionalUpper(raw, "currency")
	amount, err := parseAmount(raw["amount"])
	if err != nil {
		return tx, err
	}
	amount = amount.Round(MinorUnit(currency))
	if !models.FitsDecimal128(amount) {
		return tx, invalid("amount", "too many significant digits")
	}

	rawStatus, ok := raw.String("status")
	if !ok {
		return tx, invalid("status", "missing or not a string")
	}

	return models.CanonicalTransaction{
		TxID:          id,
		Timestamp:     ts,
		Day:           utils.DayOf(ts),
		Hour:          ts.Hour(),
		CustomerID:    customer,
		MerchantID:    merchant,
		Country:       strings.ToUpper(country),
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: optionalUpper(raw, "payment_method"),
		DeviceID:      optionalTrimmed(raw, "device_id"),
		IP:            optionalTrimmed(raw, "ip"),
		Status:        ParseStatus(rawStatus),
	}, nil
}

// ParseStatus maps a raw status to its canonical value; anything unrecognised is OTHER.
func ParseStatus(s string) models.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED":
		return models.StatusApproved
	case "DECLINED":
		return models.StatusDeclined
	default:
		return models.StatusOther
	}
}

func requiredString(raw models.RawTransaction, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", invalid(field, "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(field, fmt.Sprintf("expected string, got %T", v))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(field, "empty")
	}
	return s, nil
}

func optionalTrimmed(raw models.RawTransaction, field string) string {
	s, _ := raw.String(field)
	return strings.TrimSpace(s)
}

func optionalUpper(raw models.RawTransaction, field string) string {
	return strings.ToUpper(optionalTrimmed(raw, field))
}

// Timestamp reads the ts field as a UTC instant. Values without an offset are
// taken as UTC.
func Timestamp(raw models.RawTransaction) (time.Time, error) {
	s, err := requiredString(raw, "ts")
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("ts", "unparseable timestamp")
}

func parseAmount(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch a := v.(type) {
	case nil:
		return d, invalid("amount", "missing")
	case json.Number:
		d, err = decimal.NewFromString(a.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(a))
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return d, invalid("amount", "not a finite number")
		}
		d = decimal.NewFromFloat(a)
	case int:
		d = decimal.NewFromInt(int64(a))
	case int64:
		d = decimal.NewFromInt(a)
	default:
		return d, invalid("amount", fmt.Sprintf("expected number, got %T", v))
	}
	if err != nil {
		return d, invalid("amount", "not a number")
	}
	if d.IsNegative() {
		return d, invalid("amount", "negative")
	}
	return d, nil
}

// Result is the output of NormalizeAll.
type Result struct {
	Canonical []models.CanonicalTransaction
	Rejected  []models.Rejected
}

// NormalizeAll normalizes raws using up to workers goroutines. Output keeps
// input order. A tx_id seen earlier in the batch is rejected as a duplicate.
func NormalizeAll(ctx context.Context, raws []models.RawTransaction, workers int) (Result, error) {
	txs := make([]models.CanonicalTransaction, len(raws))
	errs := make([]error, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range utils.Chunks(len(raws), workers) {
		start, end := c[0], c[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				txs[i], errs[i] = Normalize(raws[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, errors.E(errors.Canceled, "normalize", err)
	}

	res := Result{Canonical: make([]models.CanonicalTransaction, 0, len(raws))}
	seen := make(map[string]struct{}, len(raws))
	for i, err := range errs {
		if err == nil {
			if _, dup := seen[txs[i].TxID]; dup {
				err = invalid("tx_id", "duplicate")
			}
		}
		if err != nil {
			res.Rejected = append(res.Rejected, rejected(i, raws[i], err))
			continue
		}
		seen[txs[i].TxID] = struct{}{}
		res.Canonical = append(res.Canonical, txs[i])
	}
	return res, nil
}

func rejected(index int, raw models.RawTransaction, err error) models.Rejected {
	r := models.Rejected{Index: index, Raw: raw, Reason: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		r.Field, r.Reason = ve.Field, ve.Reason
	}
	return r
}
