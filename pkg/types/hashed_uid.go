package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashedUID is an account identifier that has already been through the
// one-way hash. Keeping it a distinct type stops raw account ids from
// drifting into columns and reports that must only ever see the digest.
type HashedUID string

func (h HashedUID) String() string {
	return string(h)
}

// HashAccountID derives the HashedUID for a raw account identifier. This is
// the only intended constructor.
func HashAccountID(raw string) HashedUID {
	sum := sha256.Sum256([]byte(raw))
	return HashedUID(hex.EncodeToString(sum[:]))
}
