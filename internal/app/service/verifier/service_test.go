package verifier

import (
	"context"
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
	cfgpkg "github.com/fatflowers/affiliate/pkg/config"
	"github.com/fatflowers/affiliate/pkg/types"
)

type fakeCJ struct {
	records []cj.CommissionRecord
	windows []models.DateRange
	queried int
}

func (f *fakeCJ) ReportSubscription(context.Context, *models.Subscription) (*cj.ReportResult, error) {
	panic("not used by the verification job")
}

func (f *fakeCJ) QueryCommissions(_ context.Context, window models.DateRange) ([]cj.CommissionRecord, error) {
	f.queried++
	f.windows = append(f.windows, window)
	return f.records, nil
}

func newStore(t *testing.T, clk clock.Clock) *subsvc.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}))
	return subsvc.NewService(db, zap.NewNop().Sugar(), clk)
}

// makeReportedSub builds a subscription whose only transition is the
// Reported one at reportedAt, matching the state the reporting job leaves
// behind.
func makeReportedSub(reportedAt time.Time) *models.Subscription {
	sub := &models.Subscription{
		ID:                  uuid.NewString(),
		FlowID:              uuid.NewString(),
		SubscriptionID:      uuid.NewString(),
		ReportTimestamp:     reportedAt,
		SubscriptionCreated: reportedAt.Add(-12 * time.Hour),
		FxaUID:              types.HashAccountID(uuid.NewString()),
		Quantity:            1,
		PlanID:              "plan_" + uuid.NewString()[:8],
		PlanCurrency:        "usd",
		PlanAmount:          1999,
	}
	models.UpdateStatus(sub, models.StatusReported, reportedAt)
	return sub
}

func newVerifier(store *subsvc.Service, client cj.Client, clk clock.Clock) *Service {
	cfg := &cfgpkg.Config{Verification: cfgpkg.VerificationConfig{GraceHours: 36}}
	return NewService(cfg, store, client, zap.NewNop().Sugar(), clk)
}

func fetchState(t *testing.T, store *subsvc.Service, id string) (models.Status, models.StatusHistory) {
	t.Helper()
	sub, err := store.FetchOneByID(context.Background(), id)
	require.NoError(t, err)
	status, ok := models.GetStatus(sub)
	require.True(t, ok)
	history, ok := models.GetStatusHistory(sub)
	require.True(t, ok)
	return status, history
}

func matchingRecord(sub *models.Subscription) cj.CommissionRecord {
	return cj.CommissionRecord{
		Original:              true,
		OrderID:               sub.ID,
		SaleAmountPubCurrency: float64(sub.PlanAmount),
		Items:                 []cj.CommissionItem{{SKU: sub.PlanID}},
	}
}

func TestCorrectAndIncorrectlyReceivedSubscriptionsAreHandled(t *testing.T) {
	now := time.Now().UTC()
	fc := clock.NewFakeClock(now)
	store := newStore(t, fc)
	ctx := context.Background()

	// Fresh, fully matched by CJ.
	sub1 := makeReportedSub(now)
	// 48 hours old, CJ has the wrong amount.
	sub2 := makeReportedSub(now.Add(-48 * time.Hour))
	// 48 hours old, CJ has the wrong sku.
	sub3 := makeReportedSub(now.Add(-48 * time.Hour))
	// 48 hours old, CJ has the wrong order id.
	sub4 := makeReportedSub(now.Add(-48 * time.Hour))
	// 35 hours old, CJ has the wrong order id; below the 36h threshold.
	sub5 := makeReportedSub(now.Add(-35 * time.Hour))

	for _, sub := range []*models.Subscription{sub1, sub2, sub3, sub4, sub5} {
		require.NoError(t, store.Create(ctx, sub))
	}

	wrongAmount := matchingRecord(sub2)
	wrongAmount.SaleAmountPubCurrency = -999
	wrongSKU := matchingRecord(sub3)
	wrongSKU.Items = []cj.CommissionItem{{SKU: "WRONG SKU"}}
	wrongID := matchingRecord(sub4)
	wrongID.OrderID = "WRONGID"
	wrongIDYoung := matchingRecord(sub5)
	wrongIDYoung.OrderID = "WRONGID"

	client := &fakeCJ{records: []cj.CommissionRecord{
		matchingRecord(sub1), wrongAmount, wrongSKU, wrongID, wrongIDYoung,
	}}
	require.NoError(t, newVerifier(store, client, fc).Run(ctx))

	require.Equal(t, 1, client.queried)
	require.Equal(t, now.Add(-48*time.Hour).Unix(), client.windows[0].Min.Unix())
	require.Equal(t, now.Unix(), client.windows[0].Max.Unix())

	status, history := fetchState(t, store, sub1.ID)
	require.Equal(t, models.StatusCJReceived, status)
	require.Len(t, history.Entries, 2)
	require.Equal(t, models.StatusCJReceived, history.Entries[1].Status)
	require.Equal(t, now.Unix(), history.Entries[1].T.Unix())

	for _, sub := range []*models.Subscription{sub2, sub3, sub4} {
		status, history := fetchState(t, store, sub.ID)
		require.Equal(t, models.StatusCJNotReceived, status)
		require.Len(t, history.Entries, 2)
		require.Equal(t, models.StatusCJNotReceived, history.Entries[1].Status)
		require.Equal(t, now.Unix(), history.Entries[1].T.Unix())
	}

	// Young and unmatched: left alone so the next pass can try again.
	status, history = fetchState(t, store, sub5.ID)
	require.Equal(t, models.StatusReported, status)
	require.Len(t, history.Entries, 1)
}

func TestMatchingRuleIsConjunctive(t *testing.T) {
	now := time.Now().UTC()
	fc := clock.NewFakeClock(now)
	store := newStore(t, fc)
	ctx := context.Background()

	sub := makeReportedSub(now.Add(-48 * time.Hour))
	require.NoError(t, store.Create(ctx, sub))

	// Right order id and sku, wrong amount: must classify as not received,
	// never as "received with discrepancy".
	record := matchingRecord(sub)
	record.SaleAmountPubCurrency = float64(sub.PlanAmount) + 1
	client := &fakeCJ{records: []cj.CommissionRecord{record}}
	require.NoError(t, newVerifier(store, client, fc).Run(ctx))

	status, _ := fetchState(t, store, sub.ID)
	require.Equal(t, models.StatusCJNotReceived, status)
}

func TestGraceThresholdBoundary(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	fc := clock.NewFakeClock(now)
	store := newStore(t, fc)
	ctx := context.Background()

	atThreshold := makeReportedSub(now.Add(-36 * time.Hour))
	justBelow := makeReportedSub(now.Add(-36*time.Hour + time.Second))
	require.NoError(t, store.Create(ctx, atThreshold))
	require.NoError(t, store.Create(ctx, justBelow))

	client := &fakeCJ{}
	require.NoError(t, newVerifier(store, client, fc).Run(ctx))

	status, history := fetchState(t, store, atThreshold.ID)
	require.Equal(t, models.StatusCJNotReceived, status)
	require.Len(t, history.Entries, 2)

	status, history = fetchState(t, store, justBelow.ID)
	require.Equal(t, models.StatusReported, status)
	require.Len(t, history.Entries, 1)
}

func TestNoReportedSubscriptionsSkipsNetworkCall(t *testing.T) {
	fc := clock.NewFakeClock(time.Now().UTC())
	store := newStore(t, fc)
	ctx := context.Background()

	// Only a NotReported subscription exists; the window is empty.
	sub := makeReportedSub(fc.Now())
	models.UpdateStatus(sub, models.StatusNotReported, fc.Now())
	require.NoError(t, store.Create(ctx, sub))

	client := &fakeCJ{}
	require.NoError(t, newVerifier(store, client, fc).Run(ctx))
	require.Zero(t, client.queried)
}

func TestMatchedSubscriptionReceivedRegardlessOfAge(t *testing.T) {
	now := time.Now().UTC()
	fc := clock.NewFakeClock(now)
	store := newStore(t, fc)
	ctx := context.Background()

	sub := makeReportedSub(now.Add(-200 * time.Hour))
	require.NoError(t, store.Create(ctx, sub))

	client := &fakeCJ{records: []cj.CommissionRecord{matchingRecord(sub)}}
	require.NoError(t, newVerifier(store, client, fc).Run(ctx))

	status, _ := fetchState(t, store, sub.ID)
	require.Equal(t, models.StatusCJReceived, status)
}
