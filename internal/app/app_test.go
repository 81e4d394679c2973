package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quill/internal/audio"
	"github.com/rbright/quill/internal/fsm"
	"github.com/rbright/quill/internal/ipc"
)

func TestExecuteHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"help"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "Usage:")
}

func TestExecuteVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "quill")
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"levitate"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "unknown command")
}

func TestExecuteNoArgsShowsHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), nil, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "Commands:")
}

func TestFormatDevice(t *testing.T) {
	line := formatDevice(audio.Device{
		ID:             "USB Mic",
		IsDefault:      true,
		SupportedRates: []int{16000, 48000},
	})
	require.Equal(t, `* id="USB Mic" | rates=16000,48000`, line)

	line = formatDevice(audio.Device{ID: "Other", SupportedRates: []int{44100}})
	require.Equal(t, `  id="Other" | rates=44100`, line)
}

// stubControl drives the IPC handler without a live session.
type stubControl struct {
	state   fsm.State
	stops   int
	cancels int
}

func (s *stubControl) State() fsm.State { return s.state }
func (s *stubControl) StopSession()     { s.stops++ }
func (s *stubControl) CancelSession()   { s.cancels++ }

func TestIPCHandlerStatus(t *testing.T) {
	control := &stubControl{state: fsm.RecordingTranscribing("hello", 0)}
	handler := newIPCHandler(control)

	resp := handler.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)
	require.Equal(t, "transcribing", resp.SubState)
	require.Equal(t, "hello", resp.PartialText)
}

func TestIPCHandlerStopOnlyWhileRecording(t *testing.T) {
	control := &stubControl{state: fsm.RecordingListening()}
	handler := newIPCHandler(control)

	resp := handler.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, 1, control.stops)

	control.state = fsm.Idle()
	resp = handler.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot stop")
	require.Equal(t, 1, control.stops)
}

func TestIPCHandlerCancel(t *testing.T) {
	control := &stubControl{state: fsm.Processing()}
	handler := newIPCHandler(control)

	resp := handler.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, 1, control.cancels)

	control.state = fsm.Idle()
	resp = handler.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.False(t, resp.OK)
	require.Equal(t, 1, control.cancels)
}

func TestIPCHandlerUnknownCommand(t *testing.T) {
	control := &stubControl{state: fsm.Idle()}
	handler := newIPCHandler(control)

	resp := handler.Handle(context.Background(), ipc.Request{Command: "dance"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}
