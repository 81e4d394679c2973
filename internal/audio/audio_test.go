package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupportedRatesFiltersByRange(t *testing.T) {
	tests := []struct {
		name    string
		minRate int
		maxRate int
		want    []int
	}{
		{"full range", 8000, 96000, []int{8000, 16000, 22050, 32000, 44100, 48000, 96000}},
		{"narrow range", 16000, 48000, []int{16000, 22050, 32000, 44100, 48000}},
		{"zero range means anything", 0, 0, []int{8000, 16000, 22050, 32000, 44100, 48000, 96000}},
		{"single rate", 44100, 44100, []int{44100}},
		{"excludes below min", 22050, 96000, []int{22050, 32000, 44100, 48000, 96000}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, supportedRates(tc.minRate, tc.maxRate))
		})
	}
}

func TestNativeConfigPrefers48k(t *testing.T) {
	cfg := nativeConfig(8000, 96000, 1, 2)
	require.Equal(t, 48000, cfg.SampleRate)
	require.Equal(t, 1, cfg.Channels)
}

func TestNativeConfigFallsBackToHighestRate(t *testing.T) {
	cfg := nativeConfig(8000, 44100, 1, 2)
	require.Equal(t, 44100, cfg.SampleRate)
}

func TestNativeConfigRespectsChannelFloor(t *testing.T) {
	cfg := nativeConfig(8000, 48000, 2, 8)
	require.Equal(t, 2, cfg.Channels)
}

func TestDeviceMatchesIsCaseInsensitiveSubstring(t *testing.T) {
	require.True(t, deviceMatches("USB Microphone (C920)", "c920"))
	require.True(t, deviceMatches("Built-in Audio", "built-in"))
	require.False(t, deviceMatches("Built-in Audio", "usb"))
	require.False(t, deviceMatches("Built-in Audio", ""))
}

func TestDecodeF32LERoundTrips(t *testing.T) {
	values := []float32{0, 0.5, -0.5, 1, -1, 0.123456}
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	samples := decodeF32LE(data)
	require.Equal(t, values, samples)
}

func TestDecodeF32LEIgnoresTrailingBytes(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint32(data, math.Float32bits(0.25))

	samples := decodeF32LE(data)
	require.Len(t, samples, 1)
	require.InDelta(t, 0.25, samples[0], 1e-9)
}

func TestOnPCMDropsWhenChannelFull(t *testing.T) {
	c := &Capture{frames: make(chan []float32, 1)}

	frame := make([]byte, 8)
	binary.LittleEndian.PutUint32(frame[0:], math.Float32bits(0.1))
	binary.LittleEndian.PutUint32(frame[4:], math.Float32bits(0.2))

	c.onPCM(frame, 2)
	c.onPCM(frame, 2)
	c.onPCM(frame, 2)

	require.Equal(t, int64(2), c.Dropped())
	require.Len(t, c.frames, 1)

	got := <-c.frames
	require.Len(t, got, 2)
	require.InDelta(t, 0.1, got[0], 1e-6)
	require.InDelta(t, 0.2, got[1], 1e-6)
}

func TestOnPCMIgnoresEmptyBuffers(t *testing.T) {
	c := &Capture{frames: make(chan []float32, 1)}
	c.onPCM(nil, 0)
	require.Len(t, c.frames, 0)
	require.Equal(t, int64(0), c.Dropped())
}
