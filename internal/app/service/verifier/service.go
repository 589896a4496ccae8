package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	subsvc "github.com/fatflowers/affiliate/internal/app/service/subscription"
	"github.com/fatflowers/affiliate/internal/clock"
	models "github.com/fatflowers/affiliate/internal/models"
	"github.com/fatflowers/affiliate/internal/platform/cj"
	cfgpkg "github.com/fatflowers/affiliate/pkg/config"
	"github.com/fatflowers/affiliate/pkg/metrics"
)

// Service reconciles CJ's record of receipt against locally Reported
// subscriptions. Matching runs over the already-fetched record list in
// memory; no parallelism is needed or wanted here.
type Service struct {
	subs  *subsvc.Service
	cj    cj.Client
	log   *zap.SugaredLogger
	clk   clock.Clock
	grace time.Duration
}

func NewService(cfg *cfgpkg.Config, subs *subsvc.Service, cjClient cj.Client, log *zap.SugaredLogger, clk clock.Clock) *Service {
	return &Service{
		subs:  subs,
		cj:    cjClient,
		log:   log,
		clk:   clk,
		grace: cfg.Verification.GraceThreshold(),
	}
}

// Run queries CJ for the window spanned by Reported subscriptions and
// classifies each one as received, not received, or still pending. It
// returns an error only when the window or the commission records cannot be
// obtained; per-record update failures are logged and skipped.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(metrics.JobVerify).
			Observe(float64(time.Since(start).Milliseconds()))
	}()

	window, err := s.subs.ReportedDateRange(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute reported date range: %w", err)
	}
	if window.Empty() {
		s.log.Infow("no reported subscriptions, skipping cj query")
		return nil
	}

	records, err := s.cj.QueryCommissions(ctx, window)
	if err != nil {
		return fmt.Errorf("failed to query cj commissions: %w", err)
	}
	reported, err := s.subs.FetchAllByStatus(ctx, models.StatusReported)
	if err != nil {
		return fmt.Errorf("failed to fetch reported subscriptions: %w", err)
	}
	s.log.Infow("verification job started",
		"reported", len(reported), "cj_records", len(records))

	now := s.clk.Now()
	for _, sub := range reported {
		switch {
		case hasMatch(records, sub):
			if _, err := s.subs.UpdateStatus(ctx, sub.ID, models.StatusCJReceived); err != nil {
				s.log.Errorw("failed to mark subscription received", "id", sub.ID, "err", err)
				continue
			}
			metrics.JobVerifyOutcome.WithLabelValues(metrics.VerifyOutcomeReceived).Inc()
			s.log.Infow("subscription confirmed by cj", "id", sub.ID)

		case now.Sub(*sub.StatusT) >= s.grace:
			if _, err := s.subs.UpdateStatus(ctx, sub.ID, models.StatusCJNotReceived); err != nil {
				s.log.Errorw("failed to mark subscription not received", "id", sub.ID, "err", err)
				continue
			}
			metrics.JobVerifyOutcome.WithLabelValues(metrics.VerifyOutcomeNotReceived).Inc()
			s.log.Warnw("subscription not found in cj records", "id", sub.ID)

		default:
			// Young enough that CJ may simply not have ingested it yet.
			// Leave it Reported with no new history entry.
			metrics.JobVerifyOutcome.WithLabelValues(metrics.VerifyOutcomePending).Inc()
			s.log.Infow("subscription below grace threshold, leaving for next pass", "id", sub.ID)
		}
	}
	return nil
}

// hasMatch applies the conjunctive matching rule: the record counts as a
// confirmation only when order id, sale amount and one line-item sku all
// agree. A partial match is classification data for "not received", never a
// discrepancy variant of "received".
func hasMatch(records []cj.CommissionRecord, sub *models.Subscription) bool {
	for _, rec := range records {
		if rec.OrderID != sub.ID {
			continue
		}
		if rec.SaleAmountPubCurrency != float64(sub.PlanAmount) {
			continue
		}
		if lo.ContainsBy(rec.Items, func(item cj.CommissionItem) bool {
			return item.SKU == sub.PlanID
		}) {
			return true
		}
	}
	return false
}
