package hotkey

import (
	"errors"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/rbright/quill/internal/fsm"
)

// Actions is the session control surface the dispatcher drives.
type Actions interface {
	StartSession()
	StopSession()
	CancelSession()
}

// Config holds the raw chord slots. PushToTalk and Cancel are required;
// ToggleMode is optional.
type Config struct {
	PushToTalk string
	Cancel     string
	ToggleMode string
}

// Dispatcher translates global chord edges into session transitions.
// Dispatch consults the current FSM snapshot so stale edges (a release
// after cancel, a press mid-session) are ignored rather than misapplied.
type Dispatcher struct {
	cfg     Config
	state   func() fsm.State
	actions Actions
	logger  *slog.Logger

	mu         sync.Mutex
	registered bool
	running    bool
	events     chan hook.Event
}

// New constructs a dispatcher over the given FSM snapshot source.
func New(cfg Config, state func() fsm.State, actions Actions, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{cfg: cfg, state: state, actions: actions, logger: logger}
}

// Register parses and registers all configured chords with the OS hook.
// A chord that fails to parse is reported, but the remaining chords are
// still registered.
func (d *Dispatcher) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.registered {
		return nil
	}

	var failures []error

	ptt, err := ParseChord(d.cfg.PushToTalk)
	if err != nil {
		failures = append(failures, err)
	} else {
		hook.Register(hook.KeyDown, ptt.Keys, func(hook.Event) { d.HandlePTTPressed() })
		hook.Register(hook.KeyUp, ptt.Keys, func(hook.Event) { d.HandlePTTReleased() })
		d.logger.Debug("registered push-to-talk chord", "chord", ptt.Raw)
	}

	cancel, err := ParseChord(d.cfg.Cancel)
	if err != nil {
		failures = append(failures, err)
	} else {
		hook.Register(hook.KeyDown, cancel.Keys, func(hook.Event) { d.HandleCancelPressed() })
		d.logger.Debug("registered cancel chord", "chord", cancel.Raw)
	}

	if d.cfg.ToggleMode != "" {
		toggle, err := ParseChord(d.cfg.ToggleMode)
		if err != nil {
			failures = append(failures, err)
		} else {
			hook.Register(hook.KeyDown, toggle.Keys, func(hook.Event) { d.HandleTogglePressed() })
			d.logger.Debug("registered toggle chord", "chord", toggle.Raw)
		}
	}

	d.registered = true
	return errors.Join(failures...)
}

// Run blocks processing hook events until Stop is called.
func (d *Dispatcher) Run() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.events = hook.Start()
	events := d.events
	d.mu.Unlock()

	<-hook.Process(events)
}

// Stop ends the OS hook. Stopping an idle dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false
	hook.End()
}

// HandlePTTPressed starts a session from idle; any other state ignores
// the press.
func (d *Dispatcher) HandlePTTPressed() {
	state := d.state()
	if state.Phase != fsm.PhaseIdle {
		d.logger.Warn("push-to-talk pressed while busy", "state", fsm.Describe(state))
		return
	}
	d.actions.StartSession()
}

// HandlePTTReleased requests processing when recording; releases in any
// other state are stale and ignored.
func (d *Dispatcher) HandlePTTReleased() {
	state := d.state()
	if state.Phase != fsm.PhaseRecording {
		d.logger.Debug("push-to-talk released while not recording", "state", fsm.Describe(state))
		return
	}
	d.actions.StopSession()
}

// HandleCancelPressed aborts an in-flight session or resets an error;
// cancel while idle is ignored.
func (d *Dispatcher) HandleCancelPressed() {
	state := d.state()
	switch state.Phase {
	case fsm.PhaseConnecting, fsm.PhaseRecording, fsm.PhaseProcessing, fsm.PhaseInjecting, fsm.PhaseError:
		d.actions.CancelSession()
	default:
		d.logger.Debug("cancel pressed while idle")
	}
}

// HandleTogglePressed starts from idle, stops from recording, and ignores
// every other state.
func (d *Dispatcher) HandleTogglePressed() {
	state := d.state()
	switch state.Phase {
	case fsm.PhaseIdle:
		d.actions.StartSession()
	case fsm.PhaseRecording:
		d.actions.StopSession()
	default:
		d.logger.Debug("toggle pressed while busy", "state", fsm.Describe(state))
	}
}
