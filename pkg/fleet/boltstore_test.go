package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestBoltStoreGetMissing tests that an unrecorded cluster reads as UNKNOWN
func TestBoltStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	status, err := store.Get("nope")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, status)
}

// TestBoltStoreCompareAndSwap tests the conditional write protocol
func TestBoltStoreCompareAndSwap(t *testing.T) {
	store := newTestStore(t)

	// a missing record matches UNKNOWN
	require.NoError(t, store.CompareAndSwap("hpc-1", StatusUnknown, StatusRunning))

	status, err := store.Get("hpc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	// a stale expectation loses the race
	err = store.CompareAndSwap("hpc-1", StatusStopped, StatusStarting)
	var cue *ConcurrentUpdateError
	require.ErrorAs(t, err, &cue)
	assert.Equal(t, "hpc-1", cue.Cluster)
	assert.Equal(t, StatusStopped, cue.Expected)
	assert.Equal(t, StatusRunning, cue.Actual)
	assert.Equal(t, "ConcurrentUpdate", cue.Kind())

	// the failed swap must not have written anything
	status, err = store.Get("hpc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	// the correct expectation succeeds
	require.NoError(t, store.CompareAndSwap("hpc-1", StatusRunning, StatusStopping))
	require.NoError(t, store.CompareAndSwap("hpc-1", StatusStopping, StatusStopped))
}

// TestBoltStoreClusterIsolation tests that records are keyed per cluster
func TestBoltStoreClusterIsolation(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CompareAndSwap("a", StatusUnknown, StatusRunning))
	require.NoError(t, store.CompareAndSwap("b", StatusUnknown, StatusStopped))

	sa, err := store.Get("a")
	require.NoError(t, err)
	sb, err := store.Get("b")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, sa)
	assert.Equal(t, StatusStopped, sb)
}

// TestBoltStoreDelete tests record removal and idempotency
func TestBoltStoreDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CompareAndSwap("hpc-1", StatusUnknown, StatusRunning))
	require.NoError(t, store.Delete("hpc-1"))

	status, err := store.Get("hpc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, status)

	assert.NoError(t, store.Delete("hpc-1"), "deleting a missing record is not an error")
}

// TestStatusTransitional tests intermediate state classification
func TestStatusTransitional(t *testing.T) {
	assert.True(t, StatusStarting.Transitional())
	assert.True(t, StatusStopping.Transitional())
	assert.False(t, StatusRunning.Transitional())
	assert.False(t, StatusStopped.Transitional())
	assert.False(t, StatusUnknown.Transitional())
}
