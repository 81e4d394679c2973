// Package pipeline owns the capture -> resample -> encode audio path.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/quill/internal/audio"
	"github.com/rbright/quill/internal/resample"
)

// ErrAlreadyRunning indicates Start was called on an active pipeline.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Config controls device selection and capture shaping.
type Config struct {
	DeviceID string
	Gain     float64
}

// captureSource is the capture contract the pipeline drives; it exists so
// tests can exercise the processing task without audio hardware.
type captureSource interface {
	Start() error
	Stop()
	Frames() <-chan []float32
	Config() audio.StreamConfig
	DeviceID() string
}

// newCapture opens the real capture device; replaced in tests.
var newCapture = func(deviceID string) (captureSource, error) {
	return audio.NewCapture(deviceID)
}

// Pipeline binds one capture source, resampler, and chunk encoder behind a
// start/stop API. Encoded chunks are written to the caller's outbound
// channel with back-pressure; the channel is closed when the pipeline stops.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	started   bool
	capture   captureSource
	stopCh    chan struct{}
	done      chan struct{}
	inputRate int
}

// New constructs a pipeline from runtime config.
func New(cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Gain <= 0 {
		cfg.Gain = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Start opens the device and launches the processing task. Every encoded
// chunk is sent to outbound; outbound is closed once no further chunks can
// arrive. A second Start returns ErrAlreadyRunning.
func (p *Pipeline) Start(outbound chan<- string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyRunning
	}

	capture, err := newCapture(p.cfg.DeviceID)
	if err != nil {
		return err
	}

	streamCfg := capture.Config()
	resampler, err := resample.New(streamCfg.SampleRate)
	if err != nil {
		capture.Stop()
		return fmt.Errorf("configure resampler: %w", err)
	}

	if err := capture.Start(); err != nil {
		capture.Stop()
		return fmt.Errorf("start capture: %w", err)
	}

	p.capture = capture
	p.inputRate = streamCfg.SampleRate
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.started = true

	p.logger.Info("pipeline started",
		"device", capture.DeviceID(),
		"input_rate", streamCfg.SampleRate,
		"channels", streamCfg.Channels,
	)

	go p.run(capture, resampler, streamCfg.Channels, outbound, p.stopCh, p.done)
	return nil
}

// Stop signals the processing task, drops the capture, and waits until the
// outbound channel is closed. Stopping a stopped pipeline is a no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	capture := p.capture
	stopCh := p.stopCh
	done := p.done
	p.capture = nil
	p.mu.Unlock()

	close(stopCh)
	capture.Stop()
	<-done
}

// InputSampleRate reports the device-native rate of the current/last run.
func (p *Pipeline) InputSampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputRate
}

// OutputSampleRate is the fixed recognizer ingest rate.
func (p *Pipeline) OutputSampleRate() int {
	return resample.OutputRate
}

// run is the processing task: downmix, gain, resample, frame, deliver.
func (p *Pipeline) run(
	capture captureSource,
	resampler *resample.Resampler,
	channels int,
	outbound chan<- string,
	stopCh <-chan struct{},
	done chan<- struct{},
) {
	encoder := &Encoder{}

	defer func() {
		close(outbound)
		close(done)
		if dropper, ok := capture.(interface{ Dropped() int64 }); ok {
			if dropped := dropper.Dropped(); dropped > 0 {
				p.logger.Warn("capture frames dropped", "count", dropped)
			}
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		case frame, ok := <-capture.Frames():
			if !ok {
				return
			}

			mono := downmix(frame, channels)
			if p.cfg.Gain != 1 {
				applyGain(mono, float32(p.cfg.Gain))
			}

			for _, chunk := range encoder.Push(resampler.ProcessBuffered(mono)) {
				select {
				case outbound <- chunk:
				case <-stopCh:
					return
				}
			}
		}
	}
}

// downmix averages interleaved channels into mono in place when possible.
func downmix(frame []float32, channels int) []float32 {
	if channels <= 1 {
		return frame
	}

	frames := len(frame) / channels
	mono := frame[:frames]
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += frame[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// applyGain scales samples in place.
func applyGain(samples []float32, gain float32) {
	for i := range samples {
		samples[i] *= gain
	}
}
