package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

const frameChannelCapacity = 100

// Capture streams interleaved float32 frames from one capture device at its
// native configuration. Frames are delivered on a bounded channel; when the
// consumer falls behind, the newest frame is dropped rather than queued.
type Capture struct {
	deviceID string
	config   StreamConfig

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	frames chan []float32

	mu      sync.Mutex
	running bool
	closed  bool

	dropped atomic.Int64
}

// NewCapture resolves the device's native configuration and prepares a
// capture source for it. The device is not opened until Start.
func NewCapture(deviceID string) (*Capture, error) {
	enum, err := NewEnumerator()
	if err != nil {
		return nil, err
	}

	info, err := enum.findInfo(deviceID)
	if err != nil {
		enum.Close()
		return nil, err
	}

	cfg := nativeConfig(int(info.MinSampleRate), int(info.MaxSampleRate), int(info.MinChannels), int(info.MaxChannels))

	return &Capture{
		deviceID: info.Name(),
		config:   cfg,
		mctx:     enum.ctx,
		frames:   make(chan []float32, frameChannelCapacity),
	}, nil
}

// DeviceID returns the resolved device name for logging and diagnostics.
func (c *Capture) DeviceID() string {
	return c.deviceID
}

// Config returns the native stream configuration the device was opened with.
func (c *Capture) Config() StreamConfig {
	return c.config
}

// Frames returns the bounded frame channel. It is closed by Stop.
func (c *Capture) Frames() <-chan []float32 {
	return c.frames
}

// Dropped reports how many frames were discarded because the channel was full.
func (c *Capture) Dropped() int64 {
	return c.dropped.Load()
}

// Start opens the device stream. A second start returns ErrAlreadyRunning.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	if c.closed {
		return fmt.Errorf("capture is closed")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.config.Channels)
	deviceConfig.SampleRate = uint32(c.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(c.mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			c.onPCM(input, frameCount)
		},
	})
	if err != nil {
		return fmt.Errorf("open capture device %q: %w", c.deviceID, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start capture device %q: %w", c.deviceID, err)
	}

	c.device = device
	c.running = true
	return nil
}

// Stop halts the stream and closes the frame channel exactly once.
// Stopping an already-stopped capture is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.running = false
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	if device != nil {
		// Uninit stops the OS callback before returning, so no send can
		// race the close below.
		device.Uninit()
	}

	if !alreadyClosed {
		close(c.frames)
	}

	if c.mctx != nil && !alreadyClosed {
		_ = c.mctx.Uninit()
		c.mctx.Free()
		c.mctx = nil
	}
}

// onPCM decodes one OS buffer and performs the bounded non-blocking delivery.
func (c *Capture) onPCM(input []byte, frameCount uint32) {
	if len(input) == 0 || frameCount == 0 {
		return
	}

	samples := decodeF32LE(input)
	if len(samples) == 0 {
		return
	}

	select {
	case c.frames <- samples:
	default:
		c.dropped.Add(1)
	}
}

// decodeF32LE converts little-endian float32 PCM bytes into samples.
func decodeF32LE(data []byte) []float32 {
	count := len(data) / 4
	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
