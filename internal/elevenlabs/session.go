package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// channel capacities between adjacent stages; every stage except the
	// audio callback back-pressures when full.
	outboundCapacity = 100
	eventsCapacity   = 100

	// drainTimeout bounds how long Stop waits for the recognizer to flush
	// committed transcripts and close after our close frame.
	drainTimeout = 20 * time.Second
)

var (
	// ErrSessionRunning indicates Start on an active session.
	ErrSessionRunning = errors.New("transcription session already running")
	// ErrSessionNotRunning indicates Stop on an idle session.
	ErrSessionNotRunning = errors.New("transcription session not running")
)

// EventKind labels one externalized transcript event.
type EventKind string

const (
	EventSessionStarted EventKind = "session_started"
	EventPartial        EventKind = "partial"
	EventCommitted      EventKind = "committed"
	EventError          EventKind = "error"
	EventClosed         EventKind = "closed"
)

// TranscriptEvent is the session's externalized event alphabet, emitted
// in order to the owner callback. Word timings are preserved from
// timestamp-bearing commits even though the current consumers only use
// Text.
type TranscriptEvent struct {
	Kind         EventKind
	SessionID    string
	Text         string
	LanguageCode string
	Words        []Word
	Message      string
}

// AudioSource is the capture pipeline contract the session drives.
type AudioSource interface {
	Start(outbound chan<- string) error
	Stop()
	OutputSampleRate() int
}

// Session composes the audio pipeline, socket transport, sender, receiver,
// and event translator behind one start/stop API.
type Session struct {
	cfg    Config
	source AudioSource
	logger *slog.Logger

	mu             sync.Mutex
	running        bool
	conn           *Conn
	stopCh         chan struct{}
	senderDone     chan error
	receiverDone   chan error
	translatorDone chan struct{}
}

// NewSession constructs a transcription session.
func NewSession(cfg Config, source AudioSource, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{cfg: cfg, source: source, logger: logger}
}

// Start connects to the recognizer, starts the audio pipeline, and launches
// the sender, receiver, and translator tasks. Every transcript event is
// delivered in order to onEvent; exactly one Closed event ends the stream.
func (s *Session) Start(ctx context.Context, apiKey string, onEvent func(TranscriptEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSessionRunning
	}

	conn, err := Connect(ctx, apiKey, s.cfg)
	if err != nil {
		return err
	}

	outbound := make(chan string, outboundCapacity)
	if err := s.source.Start(outbound); err != nil {
		conn.Close()
		return fmt.Errorf("start audio pipeline: %w", err)
	}

	writer, reader := conn.Split()
	events := make(chan ServerMessage, eventsCapacity)

	s.conn = conn
	s.stopCh = make(chan struct{})
	s.senderDone = make(chan error, 1)
	s.receiverDone = make(chan error, 1)
	s.translatorDone = make(chan struct{})
	s.running = true

	sampleRate := s.source.OutputSampleRate()
	stopCh := s.stopCh

	go func() {
		s.senderDone <- RunSender(writer, sampleRate, outbound, s.cfg.KeepaliveInterval, s.logger)
	}()
	go func() {
		s.receiverDone <- RunReceiver(reader, events, stopCh, s.logger)
	}()
	go func() {
		defer close(s.translatorDone)
		for msg := range events {
			onEvent(translate(msg))
		}
		onEvent(TranscriptEvent{Kind: EventClosed})
	}()

	return nil
}

// Stop stops the audio pipeline and lets the close cascade through the
// sender, the socket, the receiver, and the translator, awaiting each in
// that order. The first task error observed is returned. The receiver is
// given drainTimeout to collect trailing transcripts before the socket is
// force-closed.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSessionNotRunning
	}
	s.running = false
	conn := s.conn
	senderDone := s.senderDone
	receiverDone := s.receiverDone
	translatorDone := s.translatorDone
	s.conn = nil
	s.mu.Unlock()

	s.source.Stop()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(<-senderDone)

	select {
	case err := <-receiverDone:
		record(err)
	case <-time.After(drainTimeout):
		s.logger.Warn("recognizer did not close in time, forcing socket shutdown")
		conn.Close()
		record(<-receiverDone)
	}

	<-translatorDone
	conn.Close()
	return firstErr
}

// Abort tears the session down without waiting for trailing transcripts.
// The socket is closed first so both halves exit immediately.
func (s *Session) Abort() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	conn := s.conn
	stopCh := s.stopCh
	senderDone := s.senderDone
	receiverDone := s.receiverDone
	translatorDone := s.translatorDone
	s.conn = nil
	s.mu.Unlock()

	close(stopCh)
	conn.Close()
	s.source.Stop()

	<-senderDone
	<-receiverDone
	<-translatorDone
}

// translate maps wire messages onto the externalized event alphabet.
func translate(msg ServerMessage) TranscriptEvent {
	switch v := msg.(type) {
	case *SessionStarted:
		return TranscriptEvent{Kind: EventSessionStarted, SessionID: v.SessionID}
	case *PartialTranscript:
		return TranscriptEvent{Kind: EventPartial, Text: v.Text}
	case *CommittedTranscript:
		return TranscriptEvent{Kind: EventCommitted, Text: v.Text}
	case *CommittedTranscriptWithTimestamps:
		return TranscriptEvent{
			Kind:         EventCommitted,
			Text:         v.Text,
			LanguageCode: v.LanguageCode,
			Words:        v.Words,
		}
	case *InputError:
		return TranscriptEvent{Kind: EventError, Message: v.ErrorMessage}
	default:
		return TranscriptEvent{Kind: EventError, Message: fmt.Sprintf("unhandled message %T", msg)}
	}
}
