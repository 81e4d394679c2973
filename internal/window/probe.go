// Package window reports the currently focused foreground application.
package window

import (
	"errors"
	"strings"

	"github.com/go-vgo/robotgo"
)

// ErrNoFocusedWindow indicates no window currently holds input focus.
var ErrNoFocusedWindow = errors.New("no focused window")

// Info describes the focused foreground window.
type Info struct {
	AppName  string
	Title    string
	PID      int
	ExecName string
	ExecPath string
}

// probeActive queries the OS for the focused window; replaced in tests.
var probeActive = func() (Info, error) {
	pid := robotgo.GetPid()
	title := strings.TrimSpace(robotgo.GetTitle())

	info := Info{Title: title, PID: int(pid)}
	if name, err := robotgo.FindName(pid); err == nil {
		info.AppName = strings.TrimSpace(name)
		info.ExecName = info.AppName
	}
	if path, err := robotgo.FindPath(pid); err == nil {
		info.ExecPath = strings.TrimSpace(path)
	}

	if info.AppName == "" && info.Title == "" {
		return Info{}, ErrNoFocusedWindow
	}
	return info, nil
}

// Current returns the focused window, or ErrNoFocusedWindow.
func Current() (*Info, error) {
	info, err := probeActive()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// knownTextApps is the closed list of applications treated as text-input
// contexts. Matching is case-insensitive substring over the app name.
// This list is configuration, not algorithm.
var knownTextApps = []string{
	// editors and IDEs
	"code", "cursor", "zed", "sublime", "intellij", "goland", "pycharm",
	"webstorm", "neovim", "vim", "emacs", "kate", "gedit", "textedit",
	"notepad",
	// browsers
	"chrome", "chromium", "firefox", "safari", "edge", "brave", "arc",
	// chat apps
	"slack", "discord", "telegram", "signal", "teams", "element",
	// terminals
	"terminal", "iterm", "alacritty", "kitty", "wezterm", "konsole",
	"ghostty",
	// notes
	"obsidian", "notion", "notes", "logseq", "bear",
}

// IsTextInputContext reports whether the focused app is likely to accept
// typed text. It is a heuristic over a known-app list, not a guarantee.
func IsTextInputContext(info *Info) bool {
	if info == nil {
		return false
	}
	name := strings.ToLower(info.AppName)
	if name == "" {
		return false
	}
	for _, app := range knownTextApps {
		if strings.Contains(name, app) {
			return true
		}
	}
	return false
}
