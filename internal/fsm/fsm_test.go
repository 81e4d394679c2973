package fsm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHappyPathEdges(t *testing.T) {
	m := New()
	require.Equal(t, PhaseIdle, m.Current().Phase)

	require.NoError(t, m.Transition(Connecting()))
	require.NoError(t, m.Transition(RecordingListening()))
	require.NoError(t, m.Transition(RecordingTranscribing("hello", 0.9)))
	require.NoError(t, m.Transition(Processing()))
	require.NoError(t, m.Transition(Injecting()))
	require.NoError(t, m.Transition(Idle()))
}

func TestRecordingSubStateChangeIsAllowed(t *testing.T) {
	m := New()
	require.NoError(t, m.Transition(Connecting()))
	require.NoError(t, m.Transition(RecordingListening()))
	require.NoError(t, m.Transition(RecordingTranscribing("hel", 0)))
	require.NoError(t, m.Transition(RecordingTranscribing("hello", 0)))

	current := m.Current()
	require.Equal(t, SubTranscribing, current.Sub)
	require.Equal(t, "hello", current.PartialText)
}

func TestInvalidEdgesRejectAndKeepState(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"idle to recording", Idle(), RecordingListening()},
		{"idle to processing", Idle(), Processing()},
		{"idle to injecting", Idle(), Injecting()},
		{"connecting to processing", Connecting(), Processing()},
		{"connecting to injecting", Connecting(), Injecting()},
		{"recording to connecting", RecordingListening(), Connecting()},
		{"recording to injecting", RecordingListening(), Injecting()},
		{"processing to recording", Processing(), RecordingListening()},
		{"processing to connecting", Processing(), Connecting()},
		{"injecting to processing", Injecting(), Processing()},
		{"injecting to recording", Injecting(), RecordingListening()},
		{"error to connecting", Errored("x"), Connecting()},
		{"error to recording", Errored("x"), RecordingListening()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			m.ForceSet(tc.from)

			err := m.Transition(tc.to)
			require.Error(t, err)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, tc.from, invalid.From)
			require.Equal(t, tc.to, invalid.To)
			require.Equal(t, tc.from, m.Current(), "state must be unchanged after rejection")
		})
	}
}

func TestInvalidTransitionDoesNotEnterErrorPhase(t *testing.T) {
	m := New()
	require.Error(t, m.Transition(Processing()))
	require.Equal(t, PhaseIdle, m.Current().Phase)
}

func TestCancelEdges(t *testing.T) {
	// Cancel is expressible from connecting, recording, and processing.
	for _, from := range []State{Connecting(), RecordingListening(), Processing()} {
		m := New()
		m.ForceSet(from)
		require.NoError(t, m.Transition(Idle()), "cancel from %s", Describe(from))
	}
}

func TestErrorRecoveryRequiresReset(t *testing.T) {
	m := New()
	m.ForceSet(Errored("socket died"))
	require.Equal(t, "socket died", m.Current().ErrorMessage)

	require.NoError(t, m.Transition(Idle()))
	require.Equal(t, PhaseIdle, m.Current().Phase)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	m := New()
	states, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Transition(Connecting()))
	require.NoError(t, m.Transition(RecordingListening()))

	first := <-states
	require.Equal(t, PhaseConnecting, first.Phase)
	second := <-states
	require.Equal(t, PhaseRecording, second.Phase)
}

func TestSlowListenerIsSkippedNotBlocked(t *testing.T) {
	m := New()
	states, cancel := m.Subscribe()
	defer cancel()

	// Overflow the bounded listener channel; transitions must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			m.ForceSet(RecordingTranscribing("x", 0))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publication blocked on a slow listener")
	}

	// The listener still drains what its buffer held.
	require.NotEmpty(t, states)
}

func TestCancelledListenerIsCollected(t *testing.T) {
	m := New()
	states, cancel := m.Subscribe()
	cancel()

	// Publication after cancel must neither panic nor deliver.
	m.ForceSet(Connecting())

	_, open := <-states
	require.False(t, open, "cancelled listener channel must be closed")
}

func TestProcessingWatchdogForcesIdle(t *testing.T) {
	var mu sync.Mutex
	fired := false

	m := New(WithProcessingWatchdog(50*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	}))

	m.ForceSet(Processing())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired && m.Current().Phase == PhaseIdle
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessingWatchdogDisarmsOnExit(t *testing.T) {
	var mu sync.Mutex
	fired := false

	m := New(WithProcessingWatchdog(50*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	}))

	m.ForceSet(Processing())
	require.NoError(t, m.Transition(Injecting()))

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, fired, "watchdog must not fire after leaving processing")
	require.Equal(t, PhaseInjecting, m.Current().Phase)
}

func TestCurrentIsConsistentSnapshot(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := m.Current()
			// A transcribing snapshot always carries its text.
			if s.Sub == SubTranscribing {
				if s.PartialText == "" {
					t.Error("torn snapshot observed")
					return
				}
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		m.ForceSet(RecordingTranscribing("hello", 0.5))
		m.ForceSet(Idle())
	}
	close(stop)
	wg.Wait()
}
