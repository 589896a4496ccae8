package subscription

import "errors"

var (
	// ErrNotFound: no record for the given key. In UpdateStatus it can also
	// mean the row vanished between the read and the write; callers should
	// treat that as a transient race, not a permanently missing id.
	ErrNotFound = errors.New("subscription not found")
	// ErrConflict: a record with the same identity already exists.
	ErrConflict = errors.New("subscription already exists")
)
