package inject

import (
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// robotgoKeyboard synthesizes input through OS-level keyboard events.
type robotgoKeyboard struct{}

// TypeText types the text synchronously as Unicode keystrokes.
func (robotgoKeyboard) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// PasteChord synthesizes the platform paste shortcut.
func (robotgoKeyboard) PasteChord() error {
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return robotgo.KeyTap("v", modifier)
}

// systemClipboard reads and writes the OS clipboard.
type systemClipboard struct{}

func (systemClipboard) Read() (string, error) {
	return clipboard.ReadAll()
}

func (systemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}
