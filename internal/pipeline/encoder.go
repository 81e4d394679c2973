package pipeline

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

const (
	// ChunkSamples is 100 ms of 16 kHz mono audio.
	ChunkSamples = 1600
	// ChunkBytes is the plaintext size of one encoded chunk (i16 LE).
	ChunkBytes = ChunkSamples * 2
)

// Encoder accumulates 16 kHz mono float samples and emits base64-encoded
// 100 ms blocks of little-endian 16-bit PCM. Partial tails are retained
// until filled; they are never emitted.
type Encoder struct {
	residual []float32
}

// Push appends samples and returns every full chunk they complete.
func (e *Encoder) Push(samples []float32) []string {
	e.residual = append(e.residual, samples...)

	var chunks []string
	for len(e.residual) >= ChunkSamples {
		chunks = append(chunks, encodeChunk(e.residual[:ChunkSamples]))
		n := copy(e.residual, e.residual[ChunkSamples:])
		e.residual = e.residual[:n]
	}
	return chunks
}

// Reset discards any buffered partial chunk.
func (e *Encoder) Reset() {
	e.residual = e.residual[:0]
}

// encodeChunk converts exactly ChunkSamples floats to base64 i16 LE PCM.
func encodeChunk(samples []float32) string {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sampleToI16(s)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// sampleToI16 clamps to [-1, 1] and rounds to the signed 16-bit range.
func sampleToI16(f float32) int16 {
	clamped := float64(f)
	if clamped > 1 {
		clamped = 1
	} else if clamped < -1 {
		clamped = -1
	}
	return int16(math.Round(clamped * 32767))
}
