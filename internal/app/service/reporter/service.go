package reporter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	subsvc "github.com/fatflowers/affiliate/internal/app/service/subscription"
	models "github.com/fatflowers/affiliate/internal/models"
	"github.com/fatflowers/affiliate/internal/platform/cj"
	"github.com/fatflowers/affiliate/pkg/metrics"
)

// Service submits not-yet-reported subscriptions to CJ and records the
// outcome. One run makes at most one network attempt per subscription, in
// sequence; CJ's rate expectations rule out fan-out here.
type Service struct {
	subs *subsvc.Service
	cj   cj.Client
	log  *zap.SugaredLogger
}

func NewService(subs *subsvc.Service, cjClient cj.Client, log *zap.SugaredLogger) *Service {
	return &Service{subs: subs, cj: cjClient, log: log}
}

// Run reports every NotReported subscription. It returns an error only when
// the candidate fetch fails; per-record failures are logged and the loop
// moves on, leaving those records eligible for the next run.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(metrics.JobReport).
			Observe(float64(time.Since(start).Milliseconds()))
	}()

	candidates, err := s.subs.FetchAllByStatus(ctx, models.StatusNotReported)
	if err != nil {
		return fmt.Errorf("failed to fetch unreported subscriptions: %w", err)
	}
	s.log.Infow("reporting job started", "candidates", len(candidates))

	for _, sub := range candidates {
		result, err := s.cj.ReportSubscription(ctx, sub)
		if err != nil {
			metrics.JobReportOutcome.WithLabelValues(metrics.ReportOutcomeTransportError).Inc()
			s.log.Warnw("transport failure reporting subscription, will retry next run",
				"id", sub.ID, "err", err)
			continue
		}

		if result.StatusCode == http.StatusOK {
			if _, err := s.subs.UpdateStatus(ctx, sub.ID, models.StatusReported); err != nil {
				// CJ has the event but local state still says NotReported,
				// so the next run will submit it again. Accepted: there is
				// no agreed dedup key on the CJ side to fix this with.
				metrics.JobReportOutcome.WithLabelValues(metrics.ReportOutcomeInconsistentWrite).Inc()
				s.log.Errorw("subscription reported but not recorded, next run will re-submit",
					"id", sub.ID, "err", err)
				continue
			}
			metrics.JobReportOutcome.WithLabelValues(metrics.ReportOutcomeReported).Inc()
			s.log.Infow("subscription reported", "id", sub.ID)
			continue
		}

		// Rejected by CJ. Re-transitioning to NotReported is a status no-op
		// that still appends a history entry, so retries stay auditable.
		metrics.JobReportOutcome.WithLabelValues(metrics.ReportOutcomeRejected).Inc()
		s.log.Warnw("cj rejected subscription report",
			"id", sub.ID, "status", result.StatusCode)
		if _, err := s.subs.UpdateStatus(ctx, sub.ID, models.StatusNotReported); err != nil {
			s.log.Errorw("failed to record rejected report", "id", sub.ID, "err", err)
		}
	}
	return nil
}
