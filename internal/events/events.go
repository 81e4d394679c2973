// Package events defines the named UI event contract emitted by the core.
package events

import "github.com/rbright/quill/internal/fsm"

// Event names consumed by the surrounding shell.
const (
	AppStateChanged      = "app:state_changed"
	AppIdle              = "app:idle"
	AppConnecting        = "app:connecting"
	AppRecording         = "app:recording"
	AppProcessing        = "app:processing"
	AppInjecting         = "app:injecting"
	AppError             = "app:error"
	AppProcessingTimeout = "app:processing_timeout"
	TranscriptPartial    = "transcript:partial"
	SessionEvent         = "session:event"
)

// Payload is the JSON-shaped body attached to one event.
type Payload map[string]any

// Emitter receives named events; the shell decides transport and rendering.
type Emitter interface {
	Emit(name string, payload Payload)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(name string, payload Payload)

func (f EmitterFunc) Emit(name string, payload Payload) {
	f(name, payload)
}

// Discard drops all events; used when no shell is attached.
var Discard Emitter = EmitterFunc(func(string, Payload) {})

// StatePayload builds the app:state_changed body for one FSM snapshot.
func StatePayload(state fsm.State) Payload {
	payload := Payload{"state": string(state.Phase)}
	if state.Sub != fsm.SubNone {
		payload["sub_state"] = string(state.Sub)
	}
	if state.PartialText != "" {
		payload["partial_text"] = state.PartialText
	}
	if state.Confidence != 0 {
		payload["confidence"] = state.Confidence
	}
	if state.ErrorMessage != "" {
		payload["error_message"] = state.ErrorMessage
	}
	return payload
}

// PhaseEvent maps an FSM snapshot onto its dedicated event name and body.
func PhaseEvent(state fsm.State) (string, Payload) {
	switch state.Phase {
	case fsm.PhaseIdle:
		return AppIdle, Payload{}
	case fsm.PhaseConnecting:
		return AppConnecting, Payload{}
	case fsm.PhaseRecording:
		return AppRecording, Payload{"is_transcribing": state.Sub == fsm.SubTranscribing}
	case fsm.PhaseProcessing:
		return AppProcessing, Payload{}
	case fsm.PhaseInjecting:
		return AppInjecting, Payload{}
	case fsm.PhaseError:
		return AppError, Payload{"message": state.ErrorMessage}
	default:
		return AppStateChanged, StatePayload(state)
	}
}
