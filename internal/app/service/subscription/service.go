package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/affiliate/internal/clock"
	models "github.com/fatflowers/affiliate/internal/models"
)

// Service is the persistence and query layer over subscription records.
// Rows are only ever inserted or status-updated, never deleted.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	clk clock.Clock
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, clk clock.Clock) *Service {
	return &Service{db: db, log: log, clk: clk}
}

// Create inserts the subscription including its initial history.
func (s *Service) Create(ctx context.Context, sub *models.Subscription) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create subscription %s: %w", sub.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (s *Service) FetchOneByID(ctx context.Context, id string) (*models.Subscription, error) {
	return s.fetchOne(ctx, "id = ?", id)
}

func (s *Service) FetchOneByFlowID(ctx context.Context, flowID string) (*models.Subscription, error) {
	return s.fetchOne(ctx, "flow_id = ?", flowID)
}

func (s *Service) FetchOneBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return s.fetchOne(ctx, "subscription_id = ?", subscriptionID)
}

func (s *Service) fetchOne(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where(query, arg).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %v: %w", query, arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) FetchAll(ctx context.Context) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	return subs, nil
}

// FetchAllByStatus returns records in the given status. Rows whose status
// was set without a valid status_t are excluded; time-windowed callers rely
// on status_t being present on everything returned here.
func (s *Service) FetchAllByStatus(ctx context.Context, status models.Status) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ? AND status_t IS NOT NULL", status.String()).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions by status: %w", err)
	}
	return subs, nil
}

// UpdateStatus is a read-modify-write: fetch the current row, apply the
// ledger transition, persist the three tracking columns in one single-row
// update. There is no locking across the read and the write; of two
// interleaved calls the later write wins, keeping the earlier call's
// history entry but overwriting its status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Subscription, error) {
	sub, err := s.FetchOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	models.UpdateStatus(sub, status, s.clk.Now())

	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         sub.Status,
			"status_t":       sub.StatusT,
			"status_history": sub.StatusHistory,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update subscription status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update status of %s: %w", id, ErrNotFound)
	}
	return sub, nil
}

// ReportedDateRange bounds status_t over all Reported rows. Computed over
// the fetched rows rather than a SQL aggregate so timestamp handling stays
// identical across the postgres and sqlite drivers.
func (s *Service) ReportedDateRange(ctx context.Context) (models.DateRange, error) {
	subs, err := s.FetchAllByStatus(ctx, models.StatusReported)
	if err != nil {
		return models.DateRange{}, err
	}
	if len(subs) == 0 {
		return models.DateRange{}, nil
	}
	earliest := lo.MinBy(subs, func(a, b *models.Subscription) bool {
		return a.StatusT.Before(*b.StatusT)
	})
	latest := lo.MaxBy(subs, func(a, b *models.Subscription) bool {
		return a.StatusT.After(*b.StatusT)
	})
	return models.DateRange{Min: earliest.StatusT, Max: latest.StatusT}, nil
}

// StatusCounts returns per-status row counts for operational dashboards.
func (s *Service) StatusCounts(ctx context.Context) (map[models.Status]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("status, COUNT(*) AS n").
		Where("status IS NOT NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions by status: %w", err)
	}
	counts := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		if st, ok := models.ParseStatus(r.Status); ok {
			counts[st] = r.N
		}
	}
	return counts, nil
}
