package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAccountID(t *testing.T) {
	// sha256("abc"), hex encoded.
	require.Equal(t,
		HashedUID("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		HashAccountID("abc"))

	require.Equal(t, HashAccountID("account-1"), HashAccountID("account-1"))
	require.NotEqual(t, HashAccountID("account-1"), HashAccountID("account-2"))

	// The raw identifier must never appear in the hashed form.
	require.NotContains(t, string(HashAccountID("account-1")), "account-1")
	require.Len(t, string(HashAccountID("account-1")), 64)
}
