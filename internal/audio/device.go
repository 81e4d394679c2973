// Package audio handles input-device discovery, probing, and PCM capture.
package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

var (
	// ErrDeviceNotFound indicates the configured device id matched no live device.
	ErrDeviceNotFound = errors.New("audio input device not found")
	// ErrAlreadyRunning indicates a second start on an active capture.
	ErrAlreadyRunning = errors.New("capture already running")
)

// candidateRates is the fixed probe set; a device's supported list is the
// subset of these it reports as usable.
var candidateRates = []int{8000, 16000, 22050, 32000, 44100, 48000, 96000}

// Device describes one capture source surfaced to quill.
type Device struct {
	ID             string
	DisplayName    string
	IsDefault      bool
	SupportedRates []int
}

// StreamConfig is the native capture configuration resolved for one device.
type StreamConfig struct {
	SampleRate int
	Channels   int
}

// Enumerator lists input devices through one shared backend context.
type Enumerator struct {
	ctx *malgo.AllocatedContext
}

// NewEnumerator initializes the audio backend context for device queries.
func NewEnumerator() (*Enumerator, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Enumerator{ctx: ctx}, nil
}

// Close releases the backend context.
func (e *Enumerator) Close() {
	if e.ctx != nil {
		_ = e.ctx.Uninit()
		e.ctx.Free()
		e.ctx = nil
	}
}

// ListInputs returns available capture devices with default/rate metadata.
func (e *Enumerator) ListInputs() ([]Device, error) {
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:             strings.TrimSpace(info.Name()),
			DisplayName:    strings.TrimSpace(info.Name()),
			IsDefault:      info.IsDefault != 0,
			SupportedRates: supportedRates(int(info.MinSampleRate), int(info.MaxSampleRate)),
		})
	}
	return devices, nil
}

// DefaultInput resolves the backend's default capture device.
func (e *Enumerator) DefaultInput() (Device, error) {
	devices, err := e.ListInputs()
	if err != nil {
		return Device{}, err
	}
	for _, device := range devices {
		if device.IsDefault {
			return device, nil
		}
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return Device{}, ErrDeviceNotFound
}

// Probe resolves the native stream configuration for one device id.
func (e *Enumerator) Probe(deviceID string) (StreamConfig, error) {
	info, err := e.findInfo(deviceID)
	if err != nil {
		return StreamConfig{}, err
	}
	return nativeConfig(int(info.MinSampleRate), int(info.MaxSampleRate), int(info.MinChannels), int(info.MaxChannels)), nil
}

// findInfo resolves a device id (or "default"/"") against live capture devices.
func (e *Enumerator) findInfo(deviceID string) (malgo.DeviceInfo, error) {
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("list capture devices: %w", err)
	}
	if len(infos) == 0 {
		return malgo.DeviceInfo{}, ErrDeviceNotFound
	}

	term := strings.TrimSpace(strings.ToLower(deviceID))
	if term == "" || term == "default" {
		for _, info := range infos {
			if info.IsDefault != 0 {
				return info, nil
			}
		}
		return infos[0], nil
	}

	for _, info := range infos {
		if deviceMatches(info.Name(), term) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
}

// deviceMatches reports whether a search term matches a device name.
func deviceMatches(name string, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(name)), term)
}

// supportedRates filters the candidate set against a reported min/max range.
// A zero range means the backend accepts anything; all candidates qualify.
func supportedRates(minRate, maxRate int) []int {
	rates := make([]int, 0, len(candidateRates))
	for _, rate := range candidateRates {
		if minRate == 0 && maxRate == 0 {
			rates = append(rates, rate)
			continue
		}
		if rate >= minRate && rate <= maxRate {
			rates = append(rates, rate)
		}
	}
	return rates
}

// nativeConfig picks the capture configuration closest to the device's
// preferred operating point: 48 kHz when available, otherwise the highest
// supported candidate, mono when the device allows it.
func nativeConfig(minRate, maxRate, minChannels, maxChannels int) StreamConfig {
	rates := supportedRates(minRate, maxRate)

	sampleRate := 48000
	if len(rates) > 0 {
		sampleRate = rates[len(rates)-1]
		for _, rate := range rates {
			if rate == 48000 {
				sampleRate = rate
				break
			}
		}
	}

	channels := 1
	if minChannels > 1 {
		channels = minChannels
	}
	if maxChannels > 0 && channels > maxChannels {
		channels = maxChannels
	}

	return StreamConfig{SampleRate: sampleRate, Channels: channels}
}
