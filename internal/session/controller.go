// Package session orchestrates the end-to-end push-to-talk flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/quill/internal/elevenlabs"
	"github.com/rbright/quill/internal/events"
	"github.com/rbright/quill/internal/fsm"
	"github.com/rbright/quill/internal/inject"
	"github.com/rbright/quill/internal/window"
)

// Transcription is the streaming session contract the controller drives.
type Transcription interface {
	Start(ctx context.Context, apiKey string, onEvent func(elevenlabs.TranscriptEvent)) error
	Stop() error
	Abort()
}

// Injector is the text-delivery contract the controller drives.
type Injector interface {
	Inject(ctx context.Context, text string) (inject.Outcome, error)
}

// Config carries the orchestration settings.
type Config struct {
	AutoInject        bool
	ProcessingTimeout time.Duration
}

// Controller binds the transcription session, the state machine, and the
// injector into the push-to-talk flow. It implements the hotkey dispatcher's
// action surface.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	machine  *fsm.Machine
	session  Transcription
	injector Injector
	keys     *KeyStore
	emitter  events.Emitter

	// probeWindow reports the focused app before injection; replaced in tests.
	probeWindow func() (*window.Info, error)

	mu            sync.Mutex
	lastCommitted string
}

// NewController wires the orchestrator. The state machine is created here
// so its processing watchdog can reach back into the controller.
func NewController(
	cfg Config,
	transcription Transcription,
	injector Injector,
	keys *KeyStore,
	emitter events.Emitter,
	logger *slog.Logger,
) *Controller {
	if emitter == nil {
		emitter = events.Discard
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 30 * time.Second
	}

	c := &Controller{
		cfg:         cfg,
		logger:      logger,
		session:     transcription,
		injector:    injector,
		keys:        keys,
		emitter:     emitter,
		probeWindow: window.Current,
	}
	c.machine = fsm.New(fsm.WithProcessingWatchdog(cfg.ProcessingTimeout, c.onProcessingTimeout))
	return c
}

// Machine exposes the state machine for subscribers and status queries.
func (c *Controller) Machine() *fsm.Machine {
	return c.machine
}

// State returns the current snapshot.
func (c *Controller) State() fsm.State {
	return c.machine.Current()
}

// StartSession runs the connect flow. Called on PTT press from idle.
func (c *Controller) StartSession() {
	if err := c.transition(fsm.Connecting()); err != nil {
		c.logger.Warn("session start rejected", "error", err.Error())
		return
	}
	c.emitSession("connecting", events.Payload{})

	c.mu.Lock()
	c.lastCommitted = ""
	c.mu.Unlock()

	err := c.session.Start(context.Background(), c.keys.Get(), c.handleEvent)
	if err != nil {
		c.fail(connectFailureMessage(err), err)
	}
}

// StopSession requests processing. Called on PTT release while recording.
func (c *Controller) StopSession() {
	if err := c.transition(fsm.Processing()); err != nil {
		c.logger.Debug("stop ignored", "error", err.Error())
		return
	}

	go func() {
		if err := c.session.Stop(); err != nil && !errors.Is(err, elevenlabs.ErrSessionNotRunning) {
			c.logger.Error("session stop failed", "error", err.Error())
		}
	}()
}

// CancelSession aborts whatever is in flight and forces idle. Called on
// the cancel chord; also the recovery path out of the error state.
func (c *Controller) CancelSession() {
	state := c.machine.Current()
	if state.Phase == fsm.PhaseIdle {
		return
	}

	c.machine.ForceSet(fsm.Idle())
	c.emitState(fsm.Idle())
	c.emitSession("cancelled", events.Payload{})

	if state.Phase != fsm.PhaseError {
		go c.session.Abort()
	}
}

// handleEvent consumes transcript events in arrival order.
func (c *Controller) handleEvent(ev elevenlabs.TranscriptEvent) {
	switch ev.Kind {
	case elevenlabs.EventSessionStarted:
		if err := c.transition(fsm.RecordingListening()); err != nil {
			c.logger.Debug("session started after cancel", "error", err.Error())
			return
		}
		c.emitSession("started", events.Payload{"session_id": ev.SessionID})

	case elevenlabs.EventPartial:
		if c.machine.Current().Phase != fsm.PhaseRecording {
			return
		}
		if err := c.transition(fsm.RecordingTranscribing(ev.Text, 0)); err != nil {
			return
		}
		c.emitter.Emit(events.TranscriptPartial, events.Payload{"text": ev.Text})
		c.emitSession("partial", events.Payload{"text": ev.Text})

	case elevenlabs.EventCommitted:
		if strings.TrimSpace(ev.Text) != "" {
			c.mu.Lock()
			c.lastCommitted = ev.Text
			c.mu.Unlock()
		}
		c.emitSession("committed", events.Payload{"text": ev.Text})

	case elevenlabs.EventError:
		c.fail(ev.Message, errors.New(ev.Message))
		go c.session.Abort()

	case elevenlabs.EventClosed:
		c.handleClosed()
	}
}

// handleClosed drives the post-stream tail: commit injection or idle.
func (c *Controller) handleClosed() {
	state := c.machine.Current()

	// A close while still recording means the recognizer ended the stream
	// before the release; treat it as entering processing.
	if state.Phase == fsm.PhaseRecording {
		if err := c.transition(fsm.Processing()); err != nil {
			return
		}
		state = c.machine.Current()
	}

	if state.Phase != fsm.PhaseProcessing {
		return
	}

	c.mu.Lock()
	text := c.lastCommitted
	c.mu.Unlock()

	if text == "" || !c.cfg.AutoInject {
		if err := c.transition(fsm.Idle()); err == nil && text != "" {
			c.emitSession("completed", events.Payload{"text": text})
		}
		return
	}

	if err := c.transition(fsm.Injecting()); err != nil {
		return
	}

	c.logFocusedWindow()

	outcome, err := c.injector.Inject(context.Background(), text)
	if err != nil {
		c.fail(injectFailureMessage(err), err)
		return
	}

	if err := c.transition(fsm.Idle()); err != nil {
		c.logger.Warn("post-injection transition rejected", "error", err.Error())
	}

	name := "injected"
	if outcome == inject.OutcomeCopied {
		name = "copied"
	}
	c.emitSession(name, events.Payload{"text": text})
}

// onProcessingTimeout fires when the final transcript never arrived; the
// machine has already forced idle.
func (c *Controller) onProcessingTimeout() {
	c.logger.Warn("processing timed out, returning to idle")
	c.emitter.Emit(events.AppProcessingTimeout, events.Payload{})
	c.emitState(fsm.Idle())
	go c.session.Abort()
}

// transition applies one validated edge and emits the state events.
func (c *Controller) transition(next fsm.State) error {
	if err := c.machine.Transition(next); err != nil {
		return err
	}
	c.emitState(next)
	return nil
}

// fail force-transitions to the error state with a user-visible message.
func (c *Controller) fail(message string, cause error) {
	c.logger.Error("session failed", "error", cause.Error())
	next := fsm.Errored(message)
	c.machine.ForceSet(next)
	c.emitState(next)
	c.emitSession("error", events.Payload{"message": message})
}

// emitState publishes the state-changed event plus the per-phase event.
func (c *Controller) emitState(state fsm.State) {
	c.emitter.Emit(events.AppStateChanged, events.StatePayload(state))
	name, payload := events.PhaseEvent(state)
	c.emitter.Emit(name, payload)
}

// emitSession publishes one session:event envelope.
func (c *Controller) emitSession(kind string, payload events.Payload) {
	c.emitter.Emit(events.SessionEvent, events.Payload{"type": kind, "payload": payload})
}

// logFocusedWindow records where the text is about to land.
func (c *Controller) logFocusedWindow() {
	info, err := c.probeWindow()
	if err != nil {
		c.logger.Warn("no focused window before injection")
		return
	}
	if !window.IsTextInputContext(info) {
		c.logger.Warn("focused app is not a known text input context",
			"app", info.AppName, "title", info.Title)
		return
	}
	c.logger.Debug("injecting into focused app", "app", info.AppName, "pid", info.PID)
}

// connectFailureMessage maps connect errors onto user-visible text.
func connectFailureMessage(err error) string {
	switch {
	case errors.Is(err, elevenlabs.ErrAuthenticationFailed):
		return "Invalid API Key: the speech service rejected it"
	case errors.Is(err, elevenlabs.ErrTimeout):
		return "Connection to the speech service timed out"
	default:
		return fmt.Sprintf("Could not reach the speech service: %v", err)
	}
}

// injectFailureMessage maps injection errors onto user-visible text.
func injectFailureMessage(err error) string {
	if errors.Is(err, inject.ErrPermissionDenied) {
		return "Input injection is not permitted; grant accessibility access"
	}
	var clipErr *inject.ClipboardError
	if errors.As(err, &clipErr) {
		return fmt.Sprintf("Clipboard operation failed: %v", clipErr.Cause)
	}
	return fmt.Sprintf("Could not inject transcript: %v", err)
}
