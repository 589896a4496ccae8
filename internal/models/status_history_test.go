package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/fatflowers/affiliate/pkg/types"
)

func newTestSubscription() *Subscription {
	return NewSubscription(PartialSubscription{
		ID:                  "5b95e0cf-0d52-4b2e-87ca-de0e5b5e8b3a",
		FlowID:              "flow-1",
		SubscriptionID:      "sub-1",
		ReportTimestamp:     time.Now().UTC(),
		SubscriptionCreated: time.Now().UTC().Add(-35 * time.Hour),
		FxaUID:              types.HashAccountID("account-1"),
		Quantity:            1,
		PlanID:              "plan_monthly",
		PlanCurrency:        "usd",
		PlanAmount:          999,
	})
}

func TestNewSubscriptionStartsNotReportedWithOneHistoryEntry(t *testing.T) {
	now := time.Now().UTC()
	sub := newTestSubscription()

	status, ok := GetStatus(sub)
	require.True(t, ok)
	require.Equal(t, StatusNotReported, status)

	statusT, ok := GetStatusT(sub)
	require.True(t, ok)
	require.Equal(t, now.Unix(), statusT.Unix())

	history, ok := GetStatusHistory(sub)
	require.True(t, ok)
	require.Len(t, history.Entries, 1)
	require.Equal(t, StatusNotReported, history.Entries[0].Status)
	require.Equal(t, now.Unix(), history.Entries[0].T.Unix())
}

func TestUpdateStatusAppendsOneEntryPerCall(t *testing.T) {
	sub := newTestSubscription()
	transitions := []Status{StatusReported, StatusNotReported, StatusReported, StatusCJReceived}

	for i, next := range transitions {
		at := time.Now().UTC().Add(time.Duration(i) * time.Minute)
		UpdateStatus(sub, next, at)

		status, ok := GetStatus(sub)
		require.True(t, ok)
		require.Equal(t, next, status)

		statusT, ok := GetStatusT(sub)
		require.True(t, ok)
		require.Equal(t, at, statusT)

		history, ok := GetStatusHistory(sub)
		require.True(t, ok)
		require.Len(t, history.Entries, i+2)
		require.Equal(t, next, history.Entries[i+1].Status)
		require.Equal(t, at.Unix(), history.Entries[i+1].T.Unix())
	}
}

func TestRepeatedStatusStillAppendsHistory(t *testing.T) {
	sub := newTestSubscription()
	UpdateStatus(sub, StatusNotReported, time.Now().UTC())

	status, ok := GetStatus(sub)
	require.True(t, ok)
	require.Equal(t, StatusNotReported, status)

	history, ok := GetStatusHistory(sub)
	require.True(t, ok)
	require.Len(t, history.Entries, 2)
}

func TestAccessorsReportAbsenceExplicitly(t *testing.T) {
	// A never-transitioned row read back from the database.
	var sub Subscription

	_, ok := GetStatus(&sub)
	require.False(t, ok)
	_, ok = GetStatusT(&sub)
	require.False(t, ok)
	_, ok = GetStatusHistory(&sub)
	require.False(t, ok)
}

func TestAccessorsRejectCorruptValues(t *testing.T) {
	bad := "Shipped"
	sub := Subscription{
		Status:        &bad,
		StatusHistory: datatypes.JSON(`{"entries": not-json`),
	}

	_, ok := GetStatus(&sub)
	require.False(t, ok)
	_, ok = GetStatusHistory(&sub)
	require.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []Status{StatusNotReported, StatusReported, StatusCJReceived, StatusCJNotReceived} {
		parsed, ok := ParseStatus(valid.String())
		require.True(t, ok)
		require.Equal(t, valid, parsed)
	}
	_, ok := ParseStatus("Unknown")
	require.False(t, ok)
}
