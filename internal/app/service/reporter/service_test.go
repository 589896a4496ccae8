package reporter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	subsvc "github.com/fatflowers/affiliate/internal/app/service/subscription"
	"github.com/fatflowers/affiliate/internal/clock"
	models "github.com/fatflowers/affiliate/internal/models"
	"github.com/fatflowers/affiliate/internal/platform/cj"
	"github.com/fatflowers/affiliate/pkg/types"
)

type fakeCJ struct {
	reportStatus int
	reportErr    error
	reported     []string
}

func (f *fakeCJ) ReportSubscription(_ context.Context, sub *models.Subscription) (*cj.ReportResult, error) {
	f.reported = append(f.reported, sub.ID)
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &cj.ReportResult{StatusCode: f.reportStatus}, nil
}

func (f *fakeCJ) QueryCommissions(context.Context, models.DateRange) ([]cj.CommissionRecord, error) {
	return nil, errors.New("not used by the reporting job")
}

func newStore(t *testing.T) *subsvc.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}))
	return subsvc.NewService(db, zap.NewNop().Sugar(), clock.System())
}

func makeFakeSub() *models.Subscription {
	return models.NewSubscription(models.PartialSubscription{
		ID:                  uuid.NewString(),
		FlowID:              uuid.NewString(),
		SubscriptionID:      uuid.NewString(),
		ReportTimestamp:     time.Now().UTC(),
		SubscriptionCreated: time.Now().UTC().Add(-2 * time.Hour),
		FxaUID:              types.HashAccountID(uuid.NewString()),
		Quantity:            1,
		PlanID:              "plan_monthly",
		PlanCurrency:        "usd",
		PlanAmount:          999,
	})
}

func fetchState(t *testing.T, store *subsvc.Service, id string) (models.Status, int) {
	t.Helper()
	sub, err := store.FetchOneByID(context.Background(), id)
	require.NoError(t, err)
	status, ok := models.GetStatus(sub)
	require.True(t, ok)
	history, ok := models.GetStatusHistory(sub)
	require.True(t, ok)
	return status, len(history.Entries)
}

func TestRunMarksAcceptedSubscriptionReported(t *testing.T) {
	store := newStore(t)
	sub := makeFakeSub()
	require.NoError(t, store.Create(context.Background(), sub))

	client := &fakeCJ{reportStatus: 200}
	svc := NewService(store, client, zap.NewNop().Sugar())
	require.NoError(t, svc.Run(context.Background()))

	require.Equal(t, []string{sub.ID}, client.reported)
	status, entries := fetchState(t, store, sub.ID)
	require.Equal(t, models.StatusReported, status)
	require.Equal(t, 2, entries)
}

func TestRunRecordsRejectionAsFreshNotReportedEntry(t *testing.T) {
	store := newStore(t)
	sub := makeFakeSub()
	require.NoError(t, store.Create(context.Background(), sub))

	client := &fakeCJ{reportStatus: 500}
	svc := NewService(store, client, zap.NewNop().Sugar())
	require.NoError(t, svc.Run(context.Background()))

	status, entries := fetchState(t, store, sub.ID)
	require.Equal(t, models.StatusNotReported, status)
	// The no-op transition still lands in the history as an audit trail of
	// the retry.
	require.Equal(t, 2, entries)
}

func TestRunLeavesSubscriptionUntouchedOnTransportFailure(t *testing.T) {
	store := newStore(t)
	sub := makeFakeSub()
	require.NoError(t, store.Create(context.Background(), sub))

	client := &fakeCJ{reportErr: errors.New("connection reset")}
	svc := NewService(store, client, zap.NewNop().Sugar())
	require.NoError(t, svc.Run(context.Background()))

	status, entries := fetchState(t, store, sub.ID)
	require.Equal(t, models.StatusNotReported, status)
	require.Equal(t, 1, entries)
}

func TestRunAttemptsEachSubscriptionExactlyOnce(t *testing.T) {
	store := newStore(t)
	first := makeFakeSub()
	second := makeFakeSub()
	require.NoError(t, store.Create(context.Background(), first))
	require.NoError(t, store.Create(context.Background(), second))

	client := &fakeCJ{reportStatus: 500}
	svc := NewService(store, client, zap.NewNop().Sugar())
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, client.reported, 2)
	require.NotEqual(t, client.reported[0], client.reported[1])
}

func TestRunSkipsAlreadyReportedSubscriptions(t *testing.T) {
	store := newStore(t)
	sub := makeFakeSub()
	require.NoError(t, store.Create(context.Background(), sub))
	_, err := store.UpdateStatus(context.Background(), sub.ID, models.StatusReported)
	require.NoError(t, err)

	client := &fakeCJ{reportStatus: 200}
	svc := NewService(store, client, zap.NewNop().Sugar())
	require.NoError(t, svc.Run(context.Background()))
	require.Empty(t, client.reported)
}
