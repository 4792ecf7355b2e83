package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// snapshotRecorder captures every published visible-online snapshot.
type snapshotRecorder struct {
	snapshots [][]string
}

func (r *snapshotRecorder) OnlineUsers(userIDs []string) {
	r.snapshots = append(r.snapshots, userIDs)
}

func (r *snapshotRecorder) last() []string {
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func newPresenceFixture() (*Registry, *Tracker, *snapshotRecorder) {
	registry := NewRegistry()
	recorder := &snapshotRecorder{}
	tracker := NewTracker(registry, recorder)
	registry.OnSessionCountChanged(tracker.OnSessionCountChanged)
	return registry, tracker, recorder
}

func TestTracker_VisibleOnlineTracksSessionCount(t *testing.T) {
	req := require.New(t)
	registry, tracker, recorder := newPresenceFixture()

	a1 := NewSession("alice")
	a2 := NewSession("alice")
	b := NewSession("bob")
	registry.Register(a1)
	registry.Register(a2)
	registry.Register(b)

	req.Equal([]string{"alice", "bob"}, tracker.VisibleOnline())

	// Second tab closing keeps alice online.
	registry.Unregister("alice", a2.ID)
	req.Equal([]string{"alice", "bob"}, recorder.last())

	// Last session closing drops her.
	registry.Unregister("alice", a1.ID)
	req.Equal([]string{"bob"}, recorder.last())
}

func TestTracker_VisibilityDefaultsToTrue(t *testing.T) {
	req := require.New(t)
	_, tracker, _ := newPresenceFixture()

	req.True(tracker.IsVisible("stranger"))
}

func TestTracker_HiddenUserIsNotVisibleOnline(t *testing.T) {
	req := require.New(t)
	registry, tracker, recorder := newPresenceFixture()

	registry.Register(NewSession("bob"))
	req.Equal([]string{"bob"}, recorder.last())

	tracker.SetVisibility("bob", false)
	req.Empty(recorder.last())
	req.Equal(1, registry.SessionCount("bob"))

	tracker.SetVisibility("bob", true)
	req.Equal([]string{"bob"}, recorder.last())
}

func TestTracker_SeedDoesNotOverrideRuntimeToggle(t *testing.T) {
	req := require.New(t)
	_, tracker, _ := newPresenceFixture()

	// Toggle arrives while the user is absent; it must survive the durable
	// preference resolved on the next connect.
	tracker.SetVisibility("carol", false)
	tracker.SeedVisibility("carol", true)

	req.False(tracker.IsVisible("carol"))
}

func TestTracker_SeedAppliesWhenUnknown(t *testing.T) {
	req := require.New(t)
	registry, tracker, _ := newPresenceFixture()

	tracker.SeedVisibility("dave", false)
	registry.Register(NewSession("dave"))

	req.Empty(tracker.VisibleOnline())
}

func TestTracker_VisibilityRetainedAcrossDisconnect(t *testing.T) {
	req := require.New(t)
	registry, tracker, _ := newPresenceFixture()

	s := NewSession("erin")
	registry.Register(s)
	tracker.SetVisibility("erin", false)
	registry.Unregister("erin", s.ID)

	// Reconnect without a fresh seed: the stored preference still applies.
	registry.Register(NewSession("erin"))
	req.Empty(tracker.VisibleOnline())
	req.False(tracker.IsVisible("erin"))
}

func TestTracker_SnapshotPublishedOnEveryChange(t *testing.T) {
	req := require.New(t)
	registry, _, recorder := newPresenceFixture()

	s := NewSession("alice")
	registry.Register(s)
	registry.Register(NewSession("bob"))
	registry.Unregister("alice", s.ID)

	req.Len(recorder.snapshots, 3)
	req.Equal([]string{"alice"}, recorder.snapshots[0])
	req.Equal([]string{"alice", "bob"}, recorder.snapshots[1])
	req.Equal([]string{"bob"}, recorder.snapshots[2])
}
