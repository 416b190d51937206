// Package aggregator folds canonical transactions into per merchant-day metrics.
//
// State lives in an explicit Accumulator per key. Accumulators combine with
// Merge, which is associative and commutative, so chunks of the input can be
// folded independently and merged in any order with the same result.
package aggregator

import (
	// Go Internal Packages
	"context"
	"fmt"
	"sort"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"
	utils "tx-pipeline/utils"

	// External Packages
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type set map[string]struct{}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) union(o set) {
	for v := range o {
		s[v] = struct{}{}
	}
}

// Accumulator is the partial aggregate of one merchant-day.
type Accumulator struct {
	Key          models.MerchantDay
	TxCount      int
	ApprovedSum  decimal.Decimal
	TotalAmount  decimal.Decimal
	MaxAmount    decimal.Decimal
	DeclineCount int
	countries    set
	customers    set
	devices      set
}

// NewAccumulator returns an empty accumulator for key.
func NewAccumulator(key models.MerchantDay) *Accumulator {
	return &Accumulator{
		Key:       key,
		countries: set{},
		customers: set{},
		devices:   set{},
	}
}

// Add folds one transaction into the accumulator.
func (a *Accumulator) Add(tx models.CanonicalTransaction) {
	a.TxCount++
	a.TotalAmount = a.TotalAmount.Add(tx.Amount)
	if tx.Status == models.StatusApproved {
		a.ApprovedSum = a.ApprovedSum.Add(tx.Amount)
	}
	if tx.Status == models.StatusDeclined {
		a.DeclineCount++
	}
	if larger(tx.Amount, a.MaxAmount) {
		a.MaxAmount = tx.Amount
	}
	a.countries.add(tx.Country)
	a.customers.add(tx.CustomerID)
	a.devices.add(tx.DeviceID)
}

// larger orders amounts by value, then by scale, so equal values written at
// different precision resolve the same way in any fold order.
func larger(x, y decimal.Decimal) bool {
	if c := x.Cmp(y); c != 0 {
		return c > 0
	}
	return x.Exponent() < y.Exponent()
}

// Merge folds o into a. Both must share the same key.
func (a *Accumulator) Merge(o *Accumulator) {
	a.TxCount += o.TxCount
	a.ApprovedSum = a.ApprovedSum.Add(o.ApprovedSum)
	a.TotalAmount = a.TotalAmount.Add(o.TotalAmount)
	a.DeclineCount += o.DeclineCount
	if larger(o.MaxAmount, a.MaxAmount) {
		a.MaxAmount = o.MaxAmount
	}
	a.countries.union(o.countries)
	a.customers.union(o.customers)
	a.devices.union(o.devices)
}

// Finalize derives the metric from the accumulated state.
func (a *Accumulator) Finalize() models.MerchantDailyMetric {
	m := models.MerchantDailyMetric{
		MerchantID:      a.Key.MerchantID,
		Day:             a.Key.Day,
		TxCount:         a.TxCount,
		ApprovedSum:     a.ApprovedSum,
		TotalAmount:     a.TotalAmount,
		AvgAmount:       decimal.Zero,
		MaxAmount:       a.MaxAmount,
		UniqueCountries: len(a.countries),
		UniqueCustomers: len(a.customers),
		UniqueDevices:   len(a.devices),
		DeclineCount:    a.DeclineCount,
	}
	if a.TxCount > 0 {
		n := decimal.NewFromInt(int64(a.TxCount))
		m.AvgAmount = a.TotalAmount.DivRound(n, 2)
		m.DeclineRate = float64(a.DeclineCount) / float64(a.TxCount)
	}
	return m
}

// Partial maps merchant-day keys to their accumulators.
type Partial map[models.MerchantDay]*Accumulator

// Fold adds every transaction to p. A record without a merchant or day is a
// contract violation between stages and aborts the fold.
func (p Partial) Fold(txs []models.CanonicalTransaction) error {
	for i := range txs {
		tx := txs[i]
		if tx.MerchantID == "" || tx.Day == "" {
			return errors.E(errors.Aggregation, fmt.Sprintf("transaction %q has no grouping key", tx.TxID), nil)
		}
		key := models.MerchantDay{MerchantID: tx.MerchantID, Day: tx.Day}
		acc, ok := p[key]
		if !ok {
			acc = NewAccumulator(key)
			p[key] = acc
		}
		acc.Add(tx)
	}
	return nil
}

// Merge folds o into p key by key.
func (p Partial) Merge(o Partial) {
	for key, acc := range o {
		if mine, ok := p[key]; ok {
			mine.Merge(acc)
			continue
		}
		merged := NewAccumulator(key)
		merged.Merge(acc)
		p[key] = merged
	}
}

// Finalize derives one metric per key.
func (p Partial) Finalize() map[models.MerchantDay]models.MerchantDailyMetric {
	out := make(map[models.MerchantDay]models.MerchantDailyMetric, len(p))
	for key, acc := range p {
		out[key] = acc.Finalize()
	}
	return out
}

// Aggregate groups txs by merchant-day in a single pass.
func Aggregate(txs []models.CanonicalTransaction) (map[models.MerchantDay]models.MerchantDailyMetric, error) {
	p := Partial{}
	if err := p.Fold(txs); err != nil {
		return nil, err
	}
	return p.Finalize(), nil
}

// AggregateParallel folds chunks of txs concurrently and merges the partial
// results. The output equals Aggregate(txs).
func AggregateParallel(ctx context.Context, txs []models.CanonicalTransaction, chunks int) (map[models.MerchantDay]models.MerchantDailyMetric, error) {
	ranges := utils.Chunks(len(txs), chunks)
	partials := make([]Partial, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.E(errors.Canceled, "aggregate", err)
			}
			p := Partial{}
			if err := p.Fold(txs[r[0]:r[1]]); err != nil {
				return err
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := Partial{}
	for _, p := range partials {
		total.Merge(p)
	}
	return total.Finalize(), nil
}

// Sorted returns the metrics ordered by merchant id, then day.
func Sorted(metrics map[models.MerchantDay]models.MerchantDailyMetric) []models.MerchantDailyMetric {
	out := make([]models.MerchantDailyMetric, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MerchantID != out[j].MerchantID {
			return out[i].MerchantID < out[j].MerchantID
		}
		return out[i].Day < out[j].Day
	})
	return out
}
