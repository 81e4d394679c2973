// Package indicator surfaces session state as desktop notifications.
package indicator

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/rbright/quill/internal/fsm"
)

const appTitle = "Quill"

// notify and alert are seams over beeep for tests.
var (
	notify = func(title, message string) error { return beeep.Notify(title, message, "") }
	alert  = func(title, message string) error { return beeep.Alert(title, message, "") }
)

// Indicator subscribes to state transitions and shows one notification each
// time the phase changes to recording, processing, or error; the other
// phases show nothing. Deliveries the desktop refuses are logged, never fatal.
type Indicator struct {
	logger  *slog.Logger
	enabled bool

	mu        sync.Mutex
	cancel    func()
	done      chan struct{}
	lastPhase fsm.Phase
}

// New constructs an indicator; when disabled every call is a no-op.
func New(enabled bool, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Indicator{logger: logger, enabled: enabled, lastPhase: fsm.PhaseIdle}
}

// Watch subscribes to the machine and renders transitions until Stop.
func (i *Indicator) Watch(machine *fsm.Machine) {
	if !i.enabled {
		return
	}

	states, cancel := machine.Subscribe()
	done := make(chan struct{})

	i.mu.Lock()
	i.cancel = cancel
	i.done = done
	i.mu.Unlock()

	go func() {
		defer close(done)
		for state := range states {
			i.show(state)
		}
	}()
}

// Stop cancels the subscription and waits for the render loop to exit.
func (i *Indicator) Stop() {
	i.mu.Lock()
	cancel := i.cancel
	done := i.done
	i.cancel = nil
	i.done = nil
	i.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// show renders one state snapshot, deduplicating by phase.
func (i *Indicator) show(state fsm.State) {
	i.mu.Lock()
	same := state.Phase == i.lastPhase
	i.lastPhase = state.Phase
	i.mu.Unlock()
	if same {
		return
	}

	var err error
	switch state.Phase {
	case fsm.PhaseRecording:
		err = notify(appTitle, "Listening…")
	case fsm.PhaseProcessing:
		err = notify(appTitle, "Transcribing…")
	case fsm.PhaseError:
		message := state.ErrorMessage
		if message == "" {
			message = "Something went wrong"
		}
		err = alert(appTitle, message)
	}

	if err != nil {
		i.logger.Warn("desktop notification failed", "error", err.Error())
	}
}
