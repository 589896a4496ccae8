package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// StatusHistoryEntry is one transition in the append-only status log.
type StatusHistoryEntry struct {
	Status Status    `json:"status"`
	T      time.Time `json:"t"`
}

// StatusHistory wraps the ordered transition log. Append order is
// chronological order; entries are never reordered or pruned.
type StatusHistory struct {
	Entries []StatusHistoryEntry `json:"entries"`
}

// DateRange bounds a status_t aggregate. Both fields are nil iff no row is
// currently in the aggregated status.
type DateRange struct {
	Min *time.Time `json:"min"`
	Max *time.Time `json:"max"`
}

func (r DateRange) Empty() bool {
	return r.Min == nil || r.Max == nil
}

// StatusTracked is the capability any record needs to participate in the
// status ledger: raw access to the status, status_t and status_history
// columns. The transition logic below is written once against it.
type StatusTracked interface {
	RawStatus() *string
	SetRawStatus(v *string)
	RawStatusT() *time.Time
	SetRawStatusT(v *time.Time)
	RawStatusHistory() datatypes.JSON
	SetRawStatusHistory(v datatypes.JSON)
}

// UpdateStatus sets the record's status to s at time now and appends the
// matching history entry. It touches nothing beyond those three fields.
func UpdateStatus(rec StatusTracked, s Status, now time.Time) {
	raw := s.String()
	rec.SetRawStatus(&raw)
	rec.SetRawStatusT(&now)

	history, ok := GetStatusHistory(rec)
	if !ok {
		history = StatusHistory{}
	}
	history.Entries = append(history.Entries, StatusHistoryEntry{Status: s, T: now})
	// StatusHistory marshals to a plain object of value types; this cannot fail.
	buf, _ := json.Marshal(history)
	rec.SetRawStatusHistory(buf)
}

// GetStatus returns the current status, or ok=false when the column is
// absent or holds a value outside the known set.
func GetStatus(rec StatusTracked) (Status, bool) {
	raw := rec.RawStatus()
	if raw == nil {
		return "", false
	}
	return ParseStatus(*raw)
}

// GetStatusT returns the timestamp of the last transition, or ok=false for
// a never-transitioned record.
func GetStatusT(rec StatusTracked) (time.Time, bool) {
	t := rec.RawStatusT()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// GetStatusHistory decodes the stored transition log. Absent or corrupt
// JSON reports ok=false instead of an empty log.
func GetStatusHistory(rec StatusTracked) (StatusHistory, bool) {
	raw := rec.RawStatusHistory()
	if len(raw) == 0 {
		return StatusHistory{}, false
	}
	var history StatusHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return StatusHistory{}, false
	}
	return history, true
}
