// Package inject places transcript text into the focused application.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Strategy selects how text reaches the foreground app.
type Strategy string

const (
	StrategyAuto          Strategy = "auto"
	StrategyKeyboard      Strategy = "keyboard"
	StrategyClipboard     Strategy = "clipboard"
	StrategyClipboardOnly Strategy = "clipboard-only"
)

// ParseStrategy validates a config strategy name.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyAuto:
		return StrategyAuto, nil
	case StrategyKeyboard:
		return StrategyKeyboard, nil
	case StrategyClipboard:
		return StrategyClipboard, nil
	case StrategyClipboardOnly:
		return StrategyClipboardOnly, nil
	default:
		return "", fmt.Errorf("unknown injection strategy %q", raw)
	}
}

// Outcome reports what an injection actually did.
type Outcome string

const (
	OutcomeTyped  Outcome = "typed"
	OutcomePasted Outcome = "pasted"
	OutcomeCopied Outcome = "copied"
)

// ErrPermissionDenied indicates the platform refused input synthesis.
var ErrPermissionDenied = errors.New("input synthesis permission denied")

// ClipboardError wraps clipboard read/write failures.
type ClipboardError struct {
	Op    string
	Cause error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("clipboard %s failed: %v", e.Op, e.Cause)
}

func (e *ClipboardError) Unwrap() error { return e.Cause }

// InjectionError wraps keyboard synthesis failures.
type InjectionError struct {
	Cause error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("injection failed: %v", e.Cause)
}

func (e *InjectionError) Unwrap() error { return e.Cause }

// Keyboard synthesizes OS-level keyboard input.
type Keyboard interface {
	TypeText(text string) error
	PasteChord() error
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Options are the immutable per-session injection settings.
type Options struct {
	Strategy          Strategy
	AutoThreshold     int
	PasteDelay        time.Duration
	PreInjectionDelay time.Duration
}

const (
	defaultAutoThreshold = 20
	defaultPasteDelay    = 100 * time.Millisecond
)

// Injector executes the selected strategy. The strategy decision happens
// once per injection.
type Injector struct {
	opts     Options
	keyboard Keyboard
	clip     Clipboard
	logger   *slog.Logger
}

// New constructs an injector backed by the real OS keyboard and clipboard.
func New(opts Options, logger *slog.Logger) *Injector {
	return newInjector(opts, robotgoKeyboard{}, systemClipboard{}, logger)
}

func newInjector(opts Options, kb Keyboard, clip Clipboard, logger *slog.Logger) *Injector {
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	if opts.AutoThreshold <= 0 {
		opts.AutoThreshold = defaultAutoThreshold
	}
	if opts.PasteDelay <= 0 {
		opts.PasteDelay = defaultPasteDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Injector{opts: opts, keyboard: kb, clip: clip, logger: logger}
}

// Pick resolves the effective strategy for a given text. Auto selects
// keyboard for short texts (codepoint count below the threshold) and
// clipboard for everything else.
func (i *Injector) Pick(text string) Strategy {
	if i.opts.Strategy != StrategyAuto {
		return i.opts.Strategy
	}
	if utf8.RuneCountInString(text) < i.opts.AutoThreshold {
		return StrategyKeyboard
	}
	return StrategyClipboard
}

// Inject places text into the focused application using the selected
// strategy and reports what happened. Errors are never swallowed; the
// caller decides how the session state reacts.
func (i *Injector) Inject(ctx context.Context, text string) (Outcome, error) {
	strategy := i.Pick(text)
	i.logger.Debug("injecting transcript",
		"strategy", string(strategy),
		"codepoints", utf8.RuneCountInString(text),
	)

	switch strategy {
	case StrategyKeyboard:
		if err := i.keyboard.TypeText(text); err != nil {
			return "", classifyKeyboardError(err)
		}
		return OutcomeTyped, nil

	case StrategyClipboard:
		return i.injectViaClipboard(ctx, text)

	case StrategyClipboardOnly:
		if err := i.clip.Write(text); err != nil {
			return "", &ClipboardError{Op: "write", Cause: err}
		}
		return OutcomeCopied, nil

	default:
		return "", &InjectionError{Cause: fmt.Errorf("unresolved strategy %q", strategy)}
	}
}

// injectViaClipboard runs the save-paste-restore transaction. The saved
// clipboard content is owned by this call and restored before it returns,
// on success and failure alike.
func (i *Injector) injectViaClipboard(ctx context.Context, text string) (Outcome, error) {
	saved, err := i.clip.Read()
	if err != nil {
		return "", &ClipboardError{Op: "read", Cause: err}
	}

	restored := false
	restore := func() error {
		if restored {
			return nil
		}
		restored = true
		if err := i.clip.Write(saved); err != nil {
			i.logger.Error("clipboard restore failed", "error", err.Error())
			return err
		}
		return nil
	}
	defer restore()

	if err := i.clip.Write(text); err != nil {
		return "", &ClipboardError{Op: "write", Cause: err}
	}

	if err := sleep(ctx, i.opts.PreInjectionDelay); err != nil {
		return "", err
	}

	pasteErr := i.keyboard.PasteChord()

	// The paste delay runs even when the chord failed so a half-delivered
	// paste is not cut short by the restore.
	if err := sleep(ctx, i.opts.PasteDelay); err != nil {
		return "", err
	}

	restoreErr := restore()

	if pasteErr != nil {
		return "", classifyKeyboardError(pasteErr)
	}
	if restoreErr != nil {
		return "", &ClipboardError{Op: "restore", Cause: restoreErr}
	}
	return OutcomePasted, nil
}

// classifyKeyboardError maps permission refusals onto ErrPermissionDenied.
func classifyKeyboardError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not trusted") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return &InjectionError{Cause: err}
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
