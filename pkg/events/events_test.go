package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// TestBrokerPublish tests that published events reach every subscriber and
// that IDs and timestamps are filled in when left empty.
func TestBrokerPublish(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(&Event{
		Type:    EventClusterCreated,
		Cluster: "hpc-1",
		Message: "cluster created",
	})

	for _, sub := range []Subscriber{sub1, sub2} {
		ev := receive(t, sub)
		require.NotNil(t, ev)
		assert.Equal(t, EventClusterCreated, ev.Type)
		assert.Equal(t, "hpc-1", ev.Cluster)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

// TestRecorder tests buffering, newest-first listing, cluster filtering,
// and eviction past capacity.
func TestRecorder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	rec := NewRecorder(b, 3)
	defer rec.Stop()

	rec.Record(&Event{ID: "1", Type: EventClusterCreated, Cluster: "hpc-1"})
	rec.Record(&Event{ID: "2", Type: EventFleetStopped, Cluster: "hpc-2"})
	rec.Record(&Event{ID: "3", Type: EventFleetStarting, Cluster: "hpc-1"})

	all := rec.Events("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID, "newest first")
	assert.Equal(t, "1", all[2].ID)

	filtered := rec.Events("hpc-1", 0)
	require.Len(t, filtered, 2)
	assert.Equal(t, "3", filtered[0].ID)

	limited := rec.Events("", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "3", limited[0].ID)

	rec.Record(&Event{ID: "4", Type: EventFleetRunning, Cluster: "hpc-1"})
	all = rec.Events("", 0)
	require.Len(t, all, 3, "capacity evicts the oldest")
	assert.Equal(t, "2", all[2].ID)
}

// TestRecorderReceivesPublished tests that the recorder sees broker traffic
func TestRecorderReceivesPublished(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	rec := NewRecorder(b, 0)
	defer rec.Stop()

	b.Publish(&Event{Type: EventClusterDeleting, Cluster: "hpc-1"})

	deadline := time.After(2 * time.Second)
	for {
		if got := rec.Events("hpc-1", 0); len(got) == 1 {
			assert.Equal(t, EventClusterDeleting, got[0].Type)
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the recorder to observe the event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestBrokerUnsubscribe tests that an unsubscribed channel is closed and no
// longer receives events.
func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	kept := b.Subscribe()
	b.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open, "unsubscribed channel should be closed")

	b.Publish(&Event{Type: EventFleetStopped, Cluster: "hpc-1"})
	ev := receive(t, kept)
	assert.Equal(t, EventFleetStopped, ev.Type)
}
