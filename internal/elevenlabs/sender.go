package elevenlabs

import (
	"fmt"
	"log/slog"
	"time"
)

// RunSender consumes encoded chunks until the channel closes, wrapping each
// in an input_audio_chunk frame. The first message of the session carries
// the sample rate; every later message omits it. When the pipeline stops
// (channel close), a graceful close frame is written and the task exits.
// Idle periods are bridged with keepalive pings.
func RunSender(w *Writer, sampleRate int, chunks <-chan string, keepalive time.Duration, logger *slog.Logger) error {
	if keepalive <= 0 {
		keepalive = defaultKeepaliveInterval
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	first := true
	sent := 0
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				logger.Debug("audio stream ended, closing socket", "chunks_sent", sent)
				if err := w.WriteClose(); err != nil {
					return fmt.Errorf("write close frame: %w", err)
				}
				return nil
			}

			msg := &ClientAudioChunk{AudioBase64: chunk}
			if first {
				rate := sampleRate
				msg.SampleRate = &rate
				first = false
			}

			data, err := MarshalClient(msg)
			if err != nil {
				return fmt.Errorf("encode audio chunk: %w", err)
			}
			if err := w.WriteText(data); err != nil {
				return fmt.Errorf("write audio chunk: %w", err)
			}
			sent++

		case <-ticker.C:
			if err := w.Ping(); err != nil {
				return fmt.Errorf("write keepalive ping: %w", err)
			}
		}
	}
}
