package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Per-subscription outcome labels for the reporting job.
const (
	ReportOutcomeReported          = "reported"
	ReportOutcomeRejected          = "rejected"
	ReportOutcomeTransportError    = "transport_error"
	ReportOutcomeInconsistentWrite = "inconsistent_write"
)

// Per-subscription outcome labels for the verification job.
const (
	VerifyOutcomeReceived    = "received"
	VerifyOutcomeNotReceived = "not_received"
	VerifyOutcomePending     = "pending"
)

// Job name labels for JobDuration.
const (
	JobReport = "report"
	JobVerify = "verify"
)

var (
	JobDuration      = newJobHistogramVec(MetricsJobDuration)
	JobReportOutcome = newJobCounterVec(
		"report_outcomes_total",
		"Reporting job per-subscription outcomes.",
		"outcome",
	)
	JobVerifyOutcome = newJobCounterVec(
		"verify_outcomes_total",
		"Verification job per-subscription outcomes.",
		"outcome",
	)
)

func newJobHistogramVec(def *Metric) *prometheus.HistogramVec {
	m := NewMetric(def, "jobs").(*prometheus.HistogramVec)
	if err := prometheus.Register(m); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return m
}

func newJobCounterVec(name, description string, labels ...string) *prometheus.CounterVec {
	m := NewMetric(&Metric{
		Name:        name,
		Description: description,
		Type:        "counter_vec",
		Args:        labels,
	}, "jobs").(*prometheus.CounterVec)
	if err := prometheus.Register(m); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return m
}
