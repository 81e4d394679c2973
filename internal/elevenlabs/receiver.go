package elevenlabs

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// RunReceiver reads frames until the peer closes, forwarding each decoded
// server message to the events channel. Pings are answered with a matching
// pong; pongs and binary frames are logged and ignored. The events channel
// is closed when the task exits, whatever the reason. A close of the stop
// channel (the event consumer is gone) also ends the task cleanly.
func RunReceiver(r *Reader, events chan<- ServerMessage, stop <-chan struct{}, logger *slog.Logger) error {
	defer close(events)

	r.conn.SetPingHandler(func(appData string) error {
		logger.Debug("ping received, answering")
		err := r.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return nil
	})
	r.conn.SetPongHandler(func(string) error {
		logger.Debug("pong received")
		return nil
	})

	for {
		msgType, data, err := r.Read()
		if err != nil {
			if isCleanClose(err) {
				logger.Debug("recognizer closed the connection")
				return nil
			}
			select {
			case <-stop:
				return nil
			default:
			}
			return fmt.Errorf("read recognizer frame: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			msg, err := UnmarshalServer(data)
			if err != nil {
				return err
			}
			select {
			case events <- msg:
			case <-stop:
				return nil
			}
		default:
			logger.Debug("ignoring non-text frame", "type", msgType, "bytes", len(data))
		}
	}
}

// isCleanClose reports whether a read error is an expected end of stream.
func isCleanClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
