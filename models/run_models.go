package models

import (
	// Go Internal Packages
	"time"
)

// RunState is a state of the pipeline coordinator for one invocation.
type RunState string

const (
	StatePending     RunState = "PENDING"
	StateNormalizing RunState = "NORMALIZING"
	StateAggregating RunState = "AGGREGATING"
	StateEvaluating  RunState = "EVALUATING"
	StatePersisting  RunState = "PERSISTING"
	StateDone        RunState = "DONE"
	StateFailed      RunState = "FAILED"
)

// RunCounts are the record counters reported for one run.
type RunCounts struct {
	Read         int              `json:"read" bson:"read"`
	Normalized   int              `json:"normalized" bson:"normalized"`
	Dropped      int              `json:"dropped" bson:"dropped"`
	OutOfDay     int              `json:"out_of_day" bson:"out_of_day"`
	MerchantDays int              `json:"merchant_days" bson:"merchant_days"`
	Alerts       map[RuleCode]int `json:"alerts" bson:"alerts"`
}

// AlertTotal sums alerts across rule codes.
func (c RunCounts) AlertTotal() int {
	total := 0
	for _, n := range c.Alerts {
		total += n
	}
	return total
}

// RunReport is the outward summary of one pipeline invocation.
type RunReport struct {
	RunID       string                     `json:"run_id"`
	Day         string                     `json:"dt"`
	State       RunState                   `json:"state"`
	FailedStage RunState                   `json:"failed_stage,omitempty"`
	ErrorCode   string                     `json:"error_code,omitempty"`
	Error       string                     `json:"error,omitempty"`
	Counts      RunCounts                  `json:"counts"`
	Stages      map[RunState]time.Duration `json:"stage_durations"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
}

// Duration is the wall-clock time of the whole run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
