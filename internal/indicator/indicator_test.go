package indicator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quill/internal/fsm"
)

type captured struct {
	mu       sync.Mutex
	notifies []string
	alerts   []string
}

func withFakeNotify(t *testing.T) *captured {
	t.Helper()
	c := &captured{}

	origNotify, origAlert := notify, alert
	notify = func(_, message string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.notifies = append(c.notifies, message)
		return nil
	}
	alert = func(_, message string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.alerts = append(c.alerts, message)
		return nil
	}
	t.Cleanup(func() { notify, alert = origNotify, origAlert })
	return c
}

func (c *captured) snapshotNotifies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.notifies...)
}

func (c *captured) snapshotAlerts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.alerts...)
}

func TestWatchRendersPhaseChanges(t *testing.T) {
	c := withFakeNotify(t)

	m := fsm.New()
	i := New(true, nil)
	i.Watch(m)
	defer i.Stop()

	m.ForceSet(fsm.RecordingListening())
	m.ForceSet(fsm.Processing())

	require.Eventually(t, func() bool {
		return len(c.snapshotNotifies()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"Listening…", "Transcribing…"}, c.snapshotNotifies())
}

func TestWatchDeduplicatesWithinPhase(t *testing.T) {
	c := withFakeNotify(t)

	m := fsm.New()
	i := New(true, nil)
	i.Watch(m)
	defer i.Stop()

	m.ForceSet(fsm.RecordingListening())
	m.ForceSet(fsm.RecordingTranscribing("h", 0))
	m.ForceSet(fsm.RecordingTranscribing("hi", 0))

	require.Eventually(t, func() bool {
		return len(c.snapshotNotifies()) >= 1
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"Listening…"}, c.snapshotNotifies())
}

func TestErrorPhaseAlerts(t *testing.T) {
	c := withFakeNotify(t)

	m := fsm.New()
	i := New(true, nil)
	i.Watch(m)
	defer i.Stop()

	m.ForceSet(fsm.Errored("socket died"))

	require.Eventually(t, func() bool {
		return len(c.snapshotAlerts()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"socket died"}, c.snapshotAlerts())
}

func TestDisabledIndicatorDoesNothing(t *testing.T) {
	c := withFakeNotify(t)

	m := fsm.New()
	i := New(false, nil)
	i.Watch(m)
	i.Stop()

	m.ForceSet(fsm.RecordingListening())
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, c.snapshotNotifies())
}

func TestStopEndsRenderLoop(t *testing.T) {
	withFakeNotify(t)

	m := fsm.New()
	i := New(true, nil)
	i.Watch(m)
	i.Stop()

	// A second stop is a no-op.
	i.Stop()
}
