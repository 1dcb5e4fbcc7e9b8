package clmmcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenPositionManagerMintAndLookup(t *testing.T) {
	tpm := NewTokenPositionManager()
	tpm.HandleMint(1, "pool-a", "alice", -60, 60)

	poolID, key, ok := tpm.Lookup(1)
	require.True(t, ok)
	require.Equal(t, "pool-a", poolID)
	require.Equal(t, PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}, key)

	require.Equal(t, []uint64{1}, tpm.TokensByOwner("alice"))
	require.Equal(t, []uint64{1}, tpm.TokensByPool("pool-a"))
}

func TestTokenPositionManagerLookupUnknownTokenFails(t *testing.T) {
	tpm := NewTokenPositionManager()
	_, _, ok := tpm.Lookup(999)
	require.False(t, ok)
}

func TestTokenPositionManagerTransferUpdatesOwnerIndexOnly(t *testing.T) {
	tpm := NewTokenPositionManager()
	tpm.HandleMint(1, "pool-a", "alice", -60, 60)
	tpm.HandleTransfer(1, "alice", "bob")

	require.Empty(t, tpm.TokensByOwner("alice"))
	require.Equal(t, []uint64{1}, tpm.TokensByOwner("bob"))

	// the underlying position key is untouched by a transfer.
	_, key, ok := tpm.Lookup(1)
	require.True(t, ok)
	require.Equal(t, "alice", key.Owner)
}

func TestTokenPositionManagerForgetRemovesAllIndices(t *testing.T) {
	tpm := NewTokenPositionManager()
	tpm.HandleMint(1, "pool-a", "alice", -60, 60)
	tpm.Forget(1)

	_, _, ok := tpm.Lookup(1)
	require.False(t, ok)
	require.Empty(t, tpm.TokensByOwner("alice"))
	require.Empty(t, tpm.TokensByPool("pool-a"))
}

func TestTokenPositionManagerForgetUnknownTokenIsNoop(t *testing.T) {
	tpm := NewTokenPositionManager()
	require.NotPanics(t, func() { tpm.Forget(42) })
}
