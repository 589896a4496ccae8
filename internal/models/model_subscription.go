package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/affiliate/pkg/types"
)

// PartialSubscription carries the public fields of Subscription for clean
// construction; the tracking columns are owned by NewSubscription.
type PartialSubscription struct {
	ID                  string
	FlowID              string
	SubscriptionID      string
	ReportTimestamp     time.Time
	SubscriptionCreated time.Time
	FxaUID              types.HashedUID
	Quantity            int32
	PlanID              string
	PlanCurrency        string
	PlanAmount          int32
	Country             *string
	Coupons             *string
	AicID               *string
	AicExpires          *time.Time
	CJEventValue        *string
}

// Subscription is one reported purchase event. Billing fields are immutable
// once created; only status, status_t and status_history change afterwards,
// and only through the ledger in status_history.go.
//
// The tracking columns are nullable so a never-transitioned or corrupt row
// can still be read; post-construction every row has all three set.
type Subscription struct {
	ID                  string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	FlowID              string    `gorm:"column:flow_id;type:varchar(255);not null;uniqueIndex" json:"flow_id"`
	SubscriptionID      string    `gorm:"column:subscription_id;type:varchar(255);not null;uniqueIndex" json:"subscription_id"`
	ReportTimestamp     time.Time `gorm:"column:report_timestamp;not null" json:"report_timestamp"`
	SubscriptionCreated time.Time `gorm:"column:subscription_created;not null" json:"subscription_created"`
	// Hashed account identifier; never a raw account id.
	FxaUID       types.HashedUID `gorm:"column:fxa_uid;type:varchar(255);not null" json:"fxa_uid"`
	Quantity     int32           `gorm:"column:quantity;not null" json:"quantity"`
	PlanID       string          `gorm:"column:plan_id;type:varchar(255);not null" json:"plan_id"`
	PlanCurrency string          `gorm:"column:plan_currency;type:varchar(8);not null" json:"plan_currency"`
	// Minor currency units.
	PlanAmount   int32      `gorm:"column:plan_amount;not null" json:"plan_amount"`
	Country      *string    `gorm:"column:country;default:null" json:"country"`
	Coupons      *string    `gorm:"column:coupons;default:null" json:"coupons"`
	AicID        *string    `gorm:"column:aic_id;type:uuid;default:null" json:"aic_id"`
	AicExpires   *time.Time `gorm:"column:aic_expires;default:null" json:"aic_expires"`
	CJEventValue *string    `gorm:"column:cj_event_value;default:null" json:"cj_event_value"`
	Status       *string    `gorm:"column:status;type:varchar(32);default:null" json:"status"`
	StatusT      *time.Time `gorm:"column:status_t;default:null" json:"status_t"`
	// Stored as a JSON blob, not a join table, for schema simplicity.
	StatusHistory datatypes.JSON `gorm:"column:status_history;default:null" json:"status_history"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// StatusTracked capability.

func (s *Subscription) RawStatus() *string                   { return s.Status }
func (s *Subscription) SetRawStatus(v *string)               { s.Status = v }
func (s *Subscription) RawStatusT() *time.Time               { return s.StatusT }
func (s *Subscription) SetRawStatusT(v *time.Time)           { s.StatusT = v }
func (s *Subscription) RawStatusHistory() datatypes.JSON     { return s.StatusHistory }
func (s *Subscription) SetRawStatusHistory(v datatypes.JSON) { s.StatusHistory = v }

// NewSubscription builds a Subscription and applies the initial NotReported
// transition, so every constructed record carries one history entry.
func NewSubscription(p PartialSubscription) *Subscription {
	sub := &Subscription{
		ID:                  p.ID,
		FlowID:              p.FlowID,
		SubscriptionID:      p.SubscriptionID,
		ReportTimestamp:     p.ReportTimestamp,
		SubscriptionCreated: p.SubscriptionCreated,
		FxaUID:              p.FxaUID,
		Quantity:            p.Quantity,
		PlanID:              p.PlanID,
		PlanCurrency:        p.PlanCurrency,
		PlanAmount:          p.PlanAmount,
		Country:             p.Country,
		Coupons:             p.Coupons,
		AicID:               p.AicID,
		AicExpires:          p.AicExpires,
		CJEventValue:        p.CJEventValue,
	}
	UpdateStatus(sub, StatusNotReported, time.Now().UTC())
	return sub
}

// Equal compares billing fields and the current status. Timestamps are
// compared at one-second resolution because sub-second precision does not
// survive the database round trip. The history list is deliberately
// excluded; compare it explicitly where a test needs it.
func (s *Subscription) Equal(o *Subscription) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ID == o.ID &&
		s.FlowID == o.FlowID &&
		s.SubscriptionID == o.SubscriptionID &&
		sameSecond(s.ReportTimestamp, o.ReportTimestamp) &&
		sameSecond(s.SubscriptionCreated, o.SubscriptionCreated) &&
		s.FxaUID == o.FxaUID &&
		s.Quantity == o.Quantity &&
		s.PlanID == o.PlanID &&
		s.PlanCurrency == o.PlanCurrency &&
		s.PlanAmount == o.PlanAmount &&
		samePtr(s.Country, o.Country) &&
		samePtr(s.Coupons, o.Coupons) &&
		samePtr(s.AicID, o.AicID) &&
		sameSecondPtr(s.AicExpires, o.AicExpires) &&
		samePtr(s.CJEventValue, o.CJEventValue) &&
		samePtr(s.Status, o.Status) &&
		sameSecondPtr(s.StatusT, o.StatusT)
}

func sameSecond(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}

func sameSecondPtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameSecond(*a, *b)
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
