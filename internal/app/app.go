// Package app wires configuration, logging, and commands into the binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/quill/internal/audio"
	"github.com/rbright/quill/internal/cli"
	"github.com/rbright/quill/internal/config"
	"github.com/rbright/quill/internal/doctor"
	"github.com/rbright/quill/internal/elevenlabs"
	"github.com/rbright/quill/internal/events"
	"github.com/rbright/quill/internal/fsm"
	"github.com/rbright/quill/internal/hotkey"
	"github.com/rbright/quill/internal/indicator"
	"github.com/rbright/quill/internal/inject"
	"github.com/rbright/quill/internal/ipc"
	"github.com/rbright/quill/internal/logging"
	"github.com/rbright/quill/internal/pipeline"
	"github.com/rbright/quill/internal/session"
	"github.com/rbright/quill/internal/version"
)

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute is the package entrypoint used by cmd/quill/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments, loads config/logging, and dispatches a command.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("quill"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("quill"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Logging.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	case cli.CommandDevices:
		return r.commandDevices()
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandStatus:
		return r.forward(ctx, "status", true)
	case cli.CommandStop:
		return r.forward(ctx, "stop", false)
	case cli.CommandCancel:
		return r.forward(ctx, "cancel", false)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandRun owns the daemon: IPC socket, hotkeys, orchestrator, indicator.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = listener.Close() }()

	strategy, err := inject.ParseStrategy(cfg.Behavior.InjectionStrategy)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	keys := session.NewKeyStore(cfg.API.APIKey)

	pipe := pipeline.New(pipeline.Config{
		DeviceID: cfg.Audio.InputDeviceID,
		Gain:     cfg.Audio.Gain,
	}, logger)

	transcription := elevenlabs.NewSession(elevenlabs.Config{
		BaseURL:           cfg.API.BaseURL,
		ModelID:           cfg.API.ModelID,
		SampleRate:        pipe.OutputSampleRate(),
		LanguageCode:      cfg.API.LanguageCode,
		IncludeTimestamps: cfg.API.IncludeTimestamps,
		VADCommitStrategy: cfg.API.VADCommitStrategy,
		ConnectTimeout:    time.Duration(cfg.API.ConnectTimeoutMS) * time.Millisecond,
	}, pipe, logger)

	injector := inject.New(inject.Options{
		Strategy:          strategy,
		AutoThreshold:     cfg.Behavior.AutoThreshold,
		PasteDelay:        time.Duration(cfg.Behavior.PasteDelayMS) * time.Millisecond,
		PreInjectionDelay: time.Duration(cfg.Behavior.PreInjectionDelayMS) * time.Millisecond,
	}, logger)

	controller := session.NewController(session.Config{
		AutoInject:        cfg.Behavior.AutoInject,
		ProcessingTimeout: time.Duration(cfg.Behavior.ProcessingTimeoutSecs) * time.Second,
	}, transcription, injector, keys, loggingEmitter{logger: logger}, logger)

	ind := indicator.New(cfg.Behavior.ShowOverlay, logger)
	ind.Watch(controller.Machine())
	defer ind.Stop()

	dispatcher := hotkey.New(hotkey.Config{
		PushToTalk: cfg.Hotkeys.PushToTalk,
		Cancel:     cfg.Hotkeys.Cancel,
		ToggleMode: cfg.Hotkeys.ToggleMode,
	}, controller.State, controller, logger)

	if err := dispatcher.Register(); err != nil {
		// One bad chord must not take the daemon down.
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		logger.Warn("hotkey registration incomplete", "error", err.Error())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- ipc.Serve(runCtx, listener, newIPCHandler(controller))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
		case <-runCtx.Done():
		}
		dispatcher.Stop()
	}()

	fmt.Fprintf(r.Stdout, "quill ready; hold %s to dictate\n", cfg.Hotkeys.PushToTalk)
	dispatcher.Run()

	controller.CancelSession()
	cancel()
	if err := <-serveDone; err != nil {
		logger.Error("ipc server failed", "error", err.Error())
	}
	return 0
}

// commandDevices prints discovered input devices and their probed rates.
func (r Runner) commandDevices() int {
	enum, err := audio.NewEnumerator()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer enum.Close()

	devices, err := enum.ListInputs()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		fmt.Fprintln(r.Stdout, formatDevice(device))
	}
	return 0
}

// formatDevice renders one device line for the devices command.
func formatDevice(device audio.Device) string {
	defaultMark := " "
	if device.IsDefault {
		defaultMark = "*"
	}
	rates := make([]string, 0, len(device.SupportedRates))
	for _, rate := range device.SupportedRates {
		rates = append(rates, strconv.Itoa(rate))
	}
	return fmt.Sprintf("%s id=%q | rates=%s", defaultMark, device.ID, strings.Join(rates, ","))
}

// forward sends one command to the running daemon.
func (r Runner) forward(ctx context.Context, command string, statusQuery bool) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if statusQuery {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 500*time.Millisecond)
	if err != nil {
		if statusQuery {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: no active quill session\n")
		return 1
	}

	if statusQuery {
		state := resp.State
		if state == "" {
			state = "idle"
		}
		if resp.SubState != "" {
			state = fmt.Sprintf("%s(%s)", state, resp.SubState)
		}
		fmt.Fprintln(r.Stdout, state)
		return 0
	}

	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// sessionControl is the controller surface the IPC handler drives.
type sessionControl interface {
	State() fsm.State
	StopSession()
	CancelSession()
}

// newIPCHandler serves status/stop/cancel for the owner daemon.
func newIPCHandler(control sessionControl) ipc.Handler {
	return ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
		state := control.State()
		switch req.Command {
		case "status":
			return ipc.Response{
				OK:          true,
				State:       string(state.Phase),
				SubState:    string(state.Sub),
				PartialText: state.PartialText,
				Message:     "status",
			}
		case "stop":
			if state.Phase != fsm.PhaseRecording {
				return ipc.Response{
					OK:    false,
					State: string(state.Phase),
					Error: fmt.Sprintf("cannot stop from state %s", fsm.Describe(state)),
				}
			}
			control.StopSession()
			return ipc.Response{OK: true, State: string(state.Phase), Message: "stop requested"}
		case "cancel":
			switch state.Phase {
			case fsm.PhaseConnecting, fsm.PhaseRecording, fsm.PhaseProcessing, fsm.PhaseInjecting, fsm.PhaseError:
				control.CancelSession()
				return ipc.Response{OK: true, State: string(state.Phase), Message: "cancel requested"}
			default:
				return ipc.Response{OK: false, State: string(state.Phase), Error: "nothing to cancel"}
			}
		default:
			return ipc.Response{OK: false, State: string(state.Phase), Error: fmt.Sprintf("unknown command: %s", req.Command)}
		}
	})
}

// loggingEmitter is the reference UI-event sink: every named event the
// shell contract defines is written to the structured log.
type loggingEmitter struct {
	logger *slog.Logger
}

func (l loggingEmitter) Emit(name string, payload events.Payload) {
	l.logger.Info("ui event", "event", name, "payload", payload)
}
