// Package doctor runs runtime readiness diagnostics for config, keys, and audio.
package doctor

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/rbright/quill/internal/audio"
	"github.com/rbright/quill/internal/config"
	"github.com/rbright/quill/internal/hotkey"
	"github.com/rbright/quill/internal/inject"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// listDevices is a seam over the audio enumerator for tests.
var listDevices = func() ([]audio.Device, error) {
	enum, err := audio.NewEnumerator()
	if err != nil {
		return nil, err
	}
	defer enum.Close()
	return enum.ListInputs()
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkAPIKey(cfg.Config))
	checks = append(checks, checkHotkeys(cfg.Config)...)
	checks = append(checks, checkStrategy(cfg.Config))
	checks = append(checks, checkClipboard())
	checks = append(checks, checkAudioDevices(cfg.Config))

	return Report{Checks: checks}
}

// checkAPIKey verifies a key is configured without revealing it.
func checkAPIKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.API.APIKey) == "" {
		return Check{
			Name:    "api_key",
			Pass:    false,
			Message: "not set; configure api.api_key or ELEVENLABS_API_KEY",
		}
	}
	return Check{
		Name:    "api_key",
		Pass:    true,
		Message: fmt.Sprintf("set (%d chars)", len(cfg.API.APIKey)),
	}
}

// checkHotkeys verifies every configured chord parses.
func checkHotkeys(cfg config.Config) []Check {
	slots := []struct {
		name  string
		chord string
	}{
		{"hotkey push_to_talk", cfg.Hotkeys.PushToTalk},
		{"hotkey cancel", cfg.Hotkeys.Cancel},
	}
	if cfg.Hotkeys.ToggleMode != "" {
		slots = append(slots, struct {
			name  string
			chord string
		}{"hotkey toggle_mode", cfg.Hotkeys.ToggleMode})
	}

	checks := make([]Check, 0, len(slots))
	for _, slot := range slots {
		if _, err := hotkey.ParseChord(slot.chord); err != nil {
			checks = append(checks, Check{Name: slot.name, Pass: false, Message: err.Error()})
			continue
		}
		checks = append(checks, Check{Name: slot.name, Pass: true, Message: slot.chord})
	}
	return checks
}

// checkStrategy verifies the injection strategy name.
func checkStrategy(cfg config.Config) Check {
	strategy, err := inject.ParseStrategy(cfg.Behavior.InjectionStrategy)
	if err != nil {
		return Check{Name: "injection_strategy", Pass: false, Message: err.Error()}
	}
	return Check{Name: "injection_strategy", Pass: true, Message: string(strategy)}
}

// probeClipboard round-trips the current clipboard content; seam for tests.
var probeClipboard = func() error {
	saved, err := clipboard.ReadAll()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := clipboard.WriteAll(saved); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// checkClipboard verifies the clipboard tool is reachable for the
// save-paste-restore injection path. The content is rewritten unchanged.
func checkClipboard() Check {
	if err := probeClipboard(); err != nil {
		return Check{Name: "clipboard", Pass: false, Message: fmt.Sprintf("clipboard unreachable: %v", err)}
	}
	return Check{Name: "clipboard", Pass: true, Message: "read/write round-trip ok"}
}

// checkAudioDevices verifies input devices exist and the configured device
// resolves.
func checkAudioDevices(cfg config.Config) Check {
	devices, err := listDevices()
	if err != nil {
		return Check{Name: "audio", Pass: false, Message: fmt.Sprintf("enumerate devices: %v", err)}
	}
	if len(devices) == 0 {
		return Check{Name: "audio", Pass: false, Message: "no input devices found"}
	}

	target := strings.TrimSpace(strings.ToLower(cfg.Audio.InputDeviceID))
	if target == "" || target == "default" {
		return Check{Name: "audio", Pass: true, Message: fmt.Sprintf("%d input devices, using default", len(devices))}
	}

	for _, device := range devices {
		if strings.Contains(strings.ToLower(device.ID), target) {
			return Check{Name: "audio", Pass: true, Message: fmt.Sprintf("matched %q", device.ID)}
		}
	}
	return Check{
		Name:    "audio",
		Pass:    false,
		Message: fmt.Sprintf("audio.input_device_id %q matched none of %d devices", cfg.Audio.InputDeviceID, len(devices)),
	}
}
