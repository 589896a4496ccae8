package models

// Status is the subscription's position in the reporting/verification
// lifecycle. Stored as a plain string in the database; use ParseStatus on
// the read path.
type Status string

const (
	StatusNotReported   Status = "NotReported"
	StatusReported      Status = "Reported"
	StatusCJReceived    Status = "CJReceived"
	StatusCJNotReceived Status = "CJNotReceived"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a raw column value back to a Status. Unknown values
// report ok=false rather than defaulting.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusNotReported, StatusReported, StatusCJReceived, StatusCJNotReceived:
		return Status(raw), true
	}
	return "", false
}
