package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultBaseURL is the production recognizer endpoint.
	DefaultBaseURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"

	apiKeyHeader = "xi-api-key"

	defaultConnectTimeout    = 5 * time.Second
	defaultKeepaliveInterval = 20 * time.Second
	controlWriteTimeout      = 5 * time.Second
)

var (
	// ErrTimeout indicates the connection attempt exceeded its deadline.
	ErrTimeout = errors.New("recognizer connection timed out")
	// ErrAuthenticationFailed indicates the endpoint rejected the API key.
	ErrAuthenticationFailed = errors.New("recognizer rejected the API key")
)

// ConnectionError wraps any non-auth, non-timeout handshake failure.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("recognizer connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Config carries the per-session recognizer settings.
type Config struct {
	BaseURL           string
	ModelID           string
	SampleRate        int
	LanguageCode      string
	IncludeTimestamps bool
	VADCommitStrategy string
	ConnectTimeout    time.Duration
	KeepaliveInterval time.Duration
}

// withDefaults fills unset fields with production values.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = defaultKeepaliveInterval
	}
	return c
}

// SessionURL builds the full endpoint URL including query parameters.
// sample_rate is always present; optional parameters are omitted entirely
// when unset.
func SessionURL(cfg Config) (string, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelID == "" {
		return "", errors.New("model id must not be empty")
	}
	if cfg.SampleRate <= 0 {
		return "", errors.New("sample rate must be > 0")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse recognizer base url: %w", err)
	}

	query := parsed.Query()
	query.Set("model_id", cfg.ModelID)
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	if cfg.LanguageCode != "" {
		query.Set("language_code", cfg.LanguageCode)
	}
	if cfg.IncludeTimestamps {
		query.Set("include_timestamps", "true")
	}
	if cfg.VADCommitStrategy != "" {
		query.Set("vad_commit_strategy", cfg.VADCommitStrategy)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Conn is one established recognizer session socket.
type Conn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Connect performs the authenticated WSS upgrade. Timeout, HTTP 401, and
// other handshake failures are distinguishable via ErrTimeout,
// ErrAuthenticationFailed, and ConnectionError. TLS trust comes from the
// host's native root store.
func Connect(ctx context.Context, apiKey string, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	endpoint, err := SessionURL(cfg)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(apiKeyHeader, apiKey)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.ConnectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, endpoint, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrAuthenticationFailed
		}
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, &ConnectionError{Cause: err}
	}

	return &Conn{conn: conn}, nil
}

// Split hands out the single-owner writer and reader halves. The sender
// task owns the writer, the receiver task owns the reader; they die
// together when either half closes.
func (c *Conn) Split() (*Writer, *Reader) {
	return &Writer{conn: c.conn}, &Reader{conn: c.conn}
}

// Close force-closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Writer is the send half of a session socket.
type Writer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteText writes one text frame.
func (w *Writer) WriteText(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// WriteClose sends a graceful close frame.
func (w *Writer) WriteClose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	payload := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return w.conn.WriteControl(websocket.CloseMessage, payload, time.Now().Add(controlWriteTimeout))
}

// Ping sends a keepalive ping frame.
func (w *Writer) Ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout))
}

// Reader is the receive half of a session socket.
type Reader struct {
	conn *websocket.Conn
}

// Read returns the next data frame.
func (r *Reader) Read() (int, []byte, error) {
	return r.conn.ReadMessage()
}

// isTimeout classifies handshake deadline failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
