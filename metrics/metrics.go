package metrics

import (
	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txpipeline_runs_total",
		Help: "Total number of pipeline runs, labelled by terminal state.",
	}, []string{"state"})

	RunsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txpipeline_runs_rejected_total",
		Help: "Total number of runs rejected because the day was already running.",
	})

	RunsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "txpipeline_runs_in_flight",
		Help: "Number of pipeline runs currently executing.",
	})

	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txpipeline_records_total",
		Help: "Raw records seen by the normalizer, labelled by outcome (normalized, dropped, out_of_day).",
	}, []string{"outcome"})

	DroppedByField = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txpipeline_records_dropped_total",
		Help: "Raw records dropped by validation, labelled by the first failing field.",
	}, []string{"field"})

	MerchantDays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txpipeline_merchant_days_total",
		Help: "Total number of merchant-day metrics produced.",
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txpipeline_alerts_total",
		Help: "Total number of alerts emitted, labelled by rule code.",
	}, []string{"rule_code"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txpipeline_stage_duration_seconds",
		Help:    "Wall-clock duration of each pipeline stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"stage"})

	IngestedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txpipeline_ingested_records_total",
		Help: "Records consumed from Kafka, labelled by outcome (stored, undated).",
	}, []string{"outcome"})
)
