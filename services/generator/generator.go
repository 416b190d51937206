// Package generator builds synthetic raw transactions for load and demo runs.
package generator

import (
	// Go Internal Packages
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	countries      = []string{"US", "GB", "FR", "DE", "ES", "IT", "CA", "AU", "JP", "BR", "IN", "MX"}
	currencies     = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD"}
	paymentMethods = []string{"CREDIT_CARD", "DEBIT_CARD", "PAYPAL", "BANK_TRANSFER", "CRYPTO"}
)

type Config struct {
	Merchants int
	Customers int
	// HighValueRate is the share of transactions drawn from 1000..5000.
	HighValueRate float64
	DeclineRate   float64
}

func DefaultConfig() Config {
	return Config{Merchants: 50, Customers: 500, HighValueRate: 0.05, DeclineRate: 0.1}
}

type Generator struct {
	conf Config
	rnd  *rand.Rand
}

// New returns a generator; equal seeds give equal sequences apart from tx_id.
func New(conf Config, seed uint64) *Generator {
	if conf.Merchants < 1 {
		conf.Merchants = 1
	}
	if conf.Customers < 1 {
		conf.Customers = 1
	}
	return &Generator{conf: conf, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) pick(xs []string) string {
	return xs[g.rnd.IntN(len(xs))]
}

// amount draws a two-decimal amount between lo and hi.
func (g *Generator) amount(lo, hi float64) json.Number {
	v := lo + g.rnd.Float64()*(hi-lo)
	return json.Number(decimal.NewFromFloat(v).StringFixed(2))
}

// Transaction generates one raw transaction timestamped within day.
func (g *Generator) Transaction(day time.Time) models.RawTransaction {
	ts := day.Add(time.Duration(g.rnd.IntN(86400)) * time.Second)

	amount := g.amount(5, 500)
	if g.rnd.Float64() < g.conf.HighValueRate {
		amount = g.amount(1000, 5000)
	}
	status := models.StatusApproved
	if g.rnd.Float64() < g.conf.DeclineRate {
		status = models.StatusDeclined
	}

	return models.RawTransaction{
		"tx_id":          uuid.NewString(),
		"ts":             ts.UTC().Format(time.RFC3339),
		"customer_id":    fmt.Sprintf("CUSTOMER_%05d", g.rnd.IntN(g.conf.Customers)+1),
		"merchant_id":    fmt.Sprintf("MERCHANT_%04d", g.rnd.IntN(g.conf.Merchants)+1),
		"country":        g.pick(countries),
		"amount":         amount,
		"currency":       g.pick(currencies),
		"payment_method": g.pick(paymentMethods),
		"device_id":      fmt.Sprintf("DEVICE_%d", 1000+g.rnd.IntN(9000)),
		"ip":             fmt.Sprintf("%d.%d.%d.%d", 1+g.rnd.IntN(255), 1+g.rnd.IntN(255), 1+g.rnd.IntN(255), 1+g.rnd.IntN(255)),
		"status":         string(status),
	}
}

// Batch generates n transactions for day.
func (g *Generator) Batch(day time.Time, n int) []models.RawTransaction {
	out := make([]models.RawTransaction, n)
	for i := range out {
		out[i] = g.Transaction(day)
	}
	return out
}
