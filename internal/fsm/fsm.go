// Package fsm owns the application state machine for the dictation flow.
package fsm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is one top-level lifecycle state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseRecording  Phase = "recording"
	PhaseProcessing Phase = "processing"
	PhaseInjecting  Phase = "injecting"
	PhaseError      Phase = "error"
)

// RecordingSub refines the recording phase.
type RecordingSub string

const (
	SubNone         RecordingSub = ""
	SubListening    RecordingSub = "listening"
	SubTranscribing RecordingSub = "transcribing"
)

// State is one immutable application state snapshot. Exactly one State is
// current per process; readers always see a complete value.
type State struct {
	Phase        Phase
	Sub          RecordingSub
	PartialText  string
	Confidence   float64
	ErrorMessage string
}

// Idle returns the rest state.
func Idle() State { return State{Phase: PhaseIdle} }

// Connecting returns the session-dial state.
func Connecting() State { return State{Phase: PhaseConnecting} }

// RecordingListening returns the recording state before any hypothesis.
func RecordingListening() State {
	return State{Phase: PhaseRecording, Sub: SubListening}
}

// RecordingTranscribing returns the recording state carrying a partial
// hypothesis.
func RecordingTranscribing(partialText string, confidence float64) State {
	return State{
		Phase:       PhaseRecording,
		Sub:         SubTranscribing,
		PartialText: partialText,
		Confidence:  confidence,
	}
}

// Processing returns the awaiting-final-transcript state.
func Processing() State { return State{Phase: PhaseProcessing} }

// Injecting returns the text-delivery state.
func Injecting() State { return State{Phase: PhaseInjecting} }

// Errored returns the error state with a user-visible message.
func Errored(message string) State {
	return State{Phase: PhaseError, ErrorMessage: message}
}

// Describe formats a state for errors and logs.
func Describe(s State) string {
	if s.Phase == PhaseRecording && s.Sub != SubNone {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Sub)
	}
	return string(s.Phase)
}

// InvalidTransitionError reports a rejected edge. It never moves the
// machine to the error phase; the caller chooses how to recover.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s --> %s", Describe(e.From), Describe(e.To))
}

// listener is one fan-out subscription. Dead listeners are collected
// lazily on the next publication.
type listener struct {
	ch   chan State
	dead atomic.Bool
}

// Machine is the single owner of the application state. Reads are
// lock-free snapshots; mutations serialize through Transition/ForceSet.
type Machine struct {
	current atomic.Pointer[State]

	mu        sync.Mutex
	listeners []*listener

	processingTimeout time.Duration
	onTimeout         func()
	watchdog          *time.Timer
}

// Option configures a Machine.
type Option func(*Machine)

// WithProcessingWatchdog arms a timer whenever the machine enters the
// processing phase; if the phase is still processing on expiry the machine
// is forced to idle and onTimeout fires.
func WithProcessingWatchdog(d time.Duration, onTimeout func()) Option {
	return func(m *Machine) {
		if d > 0 {
			m.processingTimeout = d
		}
		m.onTimeout = onTimeout
	}
}

// New builds a machine resting at idle.
func New(opts ...Option) *Machine {
	m := &Machine{processingTimeout: 30 * time.Second}
	initial := Idle()
	m.current.Store(&initial)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a lock-free snapshot of the state.
func (m *Machine) Current() State {
	return *m.current.Load()
}

// Transition validates the edge from the current state and publishes the
// next state, or rejects with InvalidTransitionError leaving the state
// unchanged.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := *m.current.Load()
	if !allowed(from, next) {
		return &InvalidTransitionError{From: from, To: next}
	}
	m.publishLocked(from, next)
	return nil
}

// ForceSet bypasses validation; used by error-recovery paths.
func (m *Machine) ForceSet(next State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(*m.current.Load(), next)
}

// Reset forces the machine back to idle.
func (m *Machine) Reset() {
	m.ForceSet(Idle())
}

// Subscribe registers a bounded listener channel. The cancel function
// closes the channel and marks the listener dead; the machine collects it
// lazily on the next publication. Publication never blocks: a full
// listener misses that delivery.
func (m *Machine) Subscribe() (<-chan State, func()) {
	l := &listener{ch: make(chan State, 16)}

	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !l.dead.Swap(true) {
			close(l.ch)
		}
	}
	return l.ch, cancel
}

// publishLocked swap-publishes a fresh snapshot, fans out to listeners,
// and manages the processing watchdog. Caller holds m.mu.
func (m *Machine) publishLocked(from State, next State) {
	snapshot := next
	m.current.Store(&snapshot)

	kept := m.listeners[:0]
	for _, l := range m.listeners {
		if l.dead.Load() {
			continue
		}
		kept = append(kept, l)
		select {
		case l.ch <- snapshot:
		default:
			// Slow listener: skip this delivery rather than block.
		}
	}
	m.listeners = kept

	entering := next.Phase == PhaseProcessing && from.Phase != PhaseProcessing
	leaving := next.Phase != PhaseProcessing && m.watchdog != nil
	switch {
	case entering:
		if m.watchdog != nil {
			m.watchdog.Stop()
		}
		m.watchdog = time.AfterFunc(m.processingTimeout, m.watchdogFired)
	case leaving:
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

// watchdogFired forces processing back to idle when the final transcript
// never arrived.
func (m *Machine) watchdogFired() {
	m.mu.Lock()
	if m.current.Load().Phase != PhaseProcessing {
		m.mu.Unlock()
		return
	}
	m.publishLocked(*m.current.Load(), Idle())
	onTimeout := m.onTimeout
	m.mu.Unlock()

	if onTimeout != nil {
		onTimeout()
	}
}

// allowed encodes the transition table.
func allowed(from State, to State) bool {
	switch from.Phase {
	case PhaseIdle:
		return to.Phase == PhaseConnecting
	case PhaseConnecting:
		return to.Phase == PhaseRecording || to.Phase == PhaseError || to.Phase == PhaseIdle
	case PhaseRecording:
		switch to.Phase {
		case PhaseRecording, PhaseProcessing, PhaseIdle, PhaseError:
			return true
		}
		return false
	case PhaseProcessing:
		return to.Phase == PhaseInjecting || to.Phase == PhaseIdle || to.Phase == PhaseError
	case PhaseInjecting:
		return to.Phase == PhaseIdle || to.Phase == PhaseError
	case PhaseError:
		return to.Phase == PhaseIdle
	default:
		return false
	}
}
