// Package elevenlabs implements the realtime speech-to-text WSS client.
package elevenlabs

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	msgTypeAudioChunk                        = "input_audio_chunk"
	msgTypeCommit                            = "commit"
	msgTypeClose                             = "close"
	msgTypeSessionStarted                    = "session_started"
	msgTypePartialTranscript                 = "partial_transcript"
	msgTypeCommittedTranscript               = "committed_transcript"
	msgTypeCommittedTranscriptWithTimestamps = "committed_transcript_with_timestamps"
	msgTypeInputError                        = "input_error"
)

// ErrProtocol indicates a frame whose message_type is not part of the
// recognizer contract. Unknown discriminators fail loudly; unknown fields
// inside known messages are ignored for forward compatibility.
var ErrProtocol = errors.New("unknown recognizer message type")

// ClientMessage is one outbound protocol message.
type ClientMessage interface {
	messageType() string
}

// ClientAudioChunk carries one 100 ms base64 PCM block. SampleRate is set
// on the first chunk of a session only. Commit and PreviousText are part
// of the wire contract but are never set by the sender task.
type ClientAudioChunk struct {
	AudioBase64  string  `json:"audio_base64"`
	SampleRate   *int    `json:"sample_rate,omitempty"`
	Commit       *bool   `json:"commit,omitempty"`
	PreviousText *string `json:"previous_text,omitempty"`
}

func (*ClientAudioChunk) messageType() string { return msgTypeAudioChunk }

// ClientCommit asks the recognizer to finalize the current utterance.
type ClientCommit struct{}

func (*ClientCommit) messageType() string { return msgTypeCommit }

// ClientClose announces the end of the client stream.
type ClientClose struct{}

func (*ClientClose) messageType() string { return msgTypeClose }

// MarshalClient serializes a client message with its discriminator.
// Absent optional fields are omitted, not null.
func MarshalClient(m ClientMessage) ([]byte, error) {
	switch v := m.(type) {
	case *ClientAudioChunk:
		return json.Marshal(struct {
			MessageType string `json:"message_type"`
			*ClientAudioChunk
		}{msgTypeAudioChunk, v})
	case *ClientCommit:
		return json.Marshal(struct {
			MessageType string `json:"message_type"`
		}{msgTypeCommit})
	case *ClientClose:
		return json.Marshal(struct {
			MessageType string `json:"message_type"`
		}{msgTypeClose})
	default:
		return nil, fmt.Errorf("marshal client message: unsupported type %T", m)
	}
}

// UnmarshalClient decodes a client frame by discriminator. Used by tests
// standing in for the recognizer.
func UnmarshalClient(data []byte) (ClientMessage, error) {
	tag, err := probeMessageType(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case msgTypeAudioChunk:
		var m ClientAudioChunk
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag, err)
		}
		return &m, nil
	case msgTypeCommit:
		return &ClientCommit{}, nil
	case msgTypeClose:
		return &ClientClose{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrProtocol, tag)
	}
}

// ServerMessage is one inbound protocol message.
type ServerMessage interface {
	serverMessageType() string
}

// SessionStarted acknowledges the stream; Config echoes server-side
// session settings and is kept opaque.
type SessionStarted struct {
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
}

func (*SessionStarted) serverMessageType() string { return msgTypeSessionStarted }

// PartialTranscript is a provisional in-progress hypothesis.
type PartialTranscript struct {
	Text string `json:"text"`
}

func (*PartialTranscript) serverMessageType() string { return msgTypePartialTranscript }

// CommittedTranscript is a finalized utterance.
type CommittedTranscript struct {
	Text string `json:"text"`
}

func (*CommittedTranscript) serverMessageType() string { return msgTypeCommittedTranscript }

// Word is one timestamped token within a committed transcript.
type Word struct {
	Word    string   `json:"word"`
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
	Type    string   `json:"type"`
	Logprob *float64 `json:"logprob,omitempty"`
}

// CommittedTranscriptWithTimestamps is a finalized utterance with
// word-level timing.
type CommittedTranscriptWithTimestamps struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Words        []Word `json:"words"`
}

func (*CommittedTranscriptWithTimestamps) serverMessageType() string {
	return msgTypeCommittedTranscriptWithTimestamps
}

// InputError reports a recognizer-side failure of the input stream.
type InputError struct {
	ErrorMessage string `json:"error_message"`
}

func (*InputError) serverMessageType() string { return msgTypeInputError }

// UnmarshalServer decodes a server frame by discriminator.
func UnmarshalServer(data []byte) (ServerMessage, error) {
	tag, err := probeMessageType(data)
	if err != nil {
		return nil, err
	}

	decode := func(m ServerMessage) (ServerMessage, error) {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag, err)
		}
		return m, nil
	}

	switch tag {
	case msgTypeSessionStarted:
		return decode(&SessionStarted{})
	case msgTypePartialTranscript:
		return decode(&PartialTranscript{})
	case msgTypeCommittedTranscript:
		return decode(&CommittedTranscript{})
	case msgTypeCommittedTranscriptWithTimestamps:
		return decode(&CommittedTranscriptWithTimestamps{})
	case msgTypeInputError:
		return decode(&InputError{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrProtocol, tag)
	}
}

// MarshalServer serializes a server message with its discriminator. Used
// by tests standing in for the recognizer.
func MarshalServer(m ServerMessage) ([]byte, error) {
	wrap := func(payload any, tag string) ([]byte, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(inner, &fields); err != nil {
			return nil, err
		}
		fields["message_type"] = tag
		return json.Marshal(fields)
	}
	return wrap(m, m.serverMessageType())
}

// probeMessageType extracts the discriminator without decoding the body.
func probeMessageType(data []byte) (string, error) {
	var probe struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("decode message envelope: %w", err)
	}
	if probe.MessageType == "" {
		return "", fmt.Errorf("%w: missing message_type", ErrProtocol)
	}
	return probe.MessageType, nil
}
