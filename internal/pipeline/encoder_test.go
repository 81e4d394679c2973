package pipeline

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleToI16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"negative full scale", -1, -32767},
		{"half", 0.5, 16384},
		{"clips high", 1.5, 32767},
		{"clips low", -2, -32767},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, sampleToI16(tc.in))
		})
	}
}

func TestRoundTripPreservesAmplitude(t *testing.T) {
	values := []float32{0, 0.25, -0.25, 0.999, -0.999, 0.0001}
	for _, v := range values {
		i := sampleToI16(v)
		back := float32(i) / 32767
		require.InDelta(t, v, back, 1.0/32768)
	}
}

func TestPushEmitsOnlyFullChunks(t *testing.T) {
	e := &Encoder{}

	require.Empty(t, e.Push(make([]float32, 1599)))

	chunks := e.Push(make([]float32, 1))
	require.Len(t, chunks, 1)

	chunks = e.Push(make([]float32, ChunkSamples*2+100))
	require.Len(t, chunks, 2)

	// The 100-sample tail stays buffered.
	require.Len(t, e.Push(make([]float32, ChunkSamples-100)), 1)
}

func TestChunkDecodesToExactly3200Bytes(t *testing.T) {
	e := &Encoder{}
	chunks := e.Push(make([]float32, ChunkSamples*3))
	require.Len(t, chunks, 3)

	for _, chunk := range chunks {
		raw, err := base64.StdEncoding.DecodeString(chunk)
		require.NoError(t, err)
		require.Len(t, raw, ChunkBytes)
	}
}

func TestChunkEncodingIsLittleEndian(t *testing.T) {
	samples := make([]float32, ChunkSamples)
	samples[0] = 0.5 // 16384 = 0x4000

	e := &Encoder{}
	chunks := e.Push(samples)
	require.Len(t, chunks, 1)

	raw, err := base64.StdEncoding.DecodeString(chunks[0])
	require.NoError(t, err)
	require.Equal(t, int16(16384), int16(binary.LittleEndian.Uint16(raw[0:2])))
	require.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(raw[2:4])))
}

func TestResetDiscardsPartialTail(t *testing.T) {
	e := &Encoder{}
	require.Empty(t, e.Push(make([]float32, 1000)))
	e.Reset()
	require.Empty(t, e.Push(make([]float32, 1000)))
	require.Len(t, e.Push(make([]float32, 600)), 1)
}
