package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate int, amplitude float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// dominantFrequency estimates the tone frequency from zero crossings.
func dominantFrequency(samples []float32, rate int) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0 && samples[i] >= 0) || (samples[i-1] >= 0 && samples[i] < 0) {
			crossings++
		}
	}
	duration := float64(len(samples)) / float64(rate)
	return float64(crossings) / 2 / duration
}

func TestNewRejectsInvalidRate(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	_, err = New(-8000)
	require.Error(t, err)
}

func TestProcessRequiresExactChunk(t *testing.T) {
	r, err := New(48000)
	require.NoError(t, err)
	require.Equal(t, 480, r.InputChunkSize())

	_, err = r.Process(make([]float32, 100))
	require.Error(t, err)

	out, err := r.Process(make([]float32, 480))
	require.NoError(t, err)
	require.NotNil(t, out)
}

func TestSineQualityAt48k(t *testing.T) {
	r, err := New(48000)
	require.NoError(t, err)

	input := sine(1000, 48000, 0.5, 48000) // 1 s of 1 kHz at amplitude 0.5
	out := r.ProcessBuffered(input)
	require.NotEmpty(t, out)

	// Skip the edges where the kernel support includes startup zeros.
	steady := out[1000 : len(out)-1000]

	freq := dominantFrequency(steady, OutputRate)
	require.InDelta(t, 1000, freq, 30) // < 3% frequency error

	var peak float64
	for _, s := range steady {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	require.InDelta(t, 0.5, peak, 0.5*0.005) // peak amplitude within 0.5%
}

func TestSineQualityAt44100(t *testing.T) {
	r, err := New(44100)
	require.NoError(t, err)

	input := sine(1000, 44100, 0.8, 44100)
	out := r.ProcessBuffered(input)
	require.NotEmpty(t, out)

	steady := out[1000 : len(out)-1000]
	freq := dominantFrequency(steady, OutputRate)
	require.InDelta(t, 1000, freq, 30)
}

func TestUpsampleFrom8k(t *testing.T) {
	r, err := New(8000)
	require.NoError(t, err)

	input := sine(1000, 8000, 0.5, 8000)
	out := r.ProcessBuffered(input)
	require.NotEmpty(t, out)

	steady := out[1000 : len(out)-1000]
	freq := dominantFrequency(steady, OutputRate)
	require.InDelta(t, 1000, freq, 30)
}

func TestRatioFidelity(t *testing.T) {
	tests := []struct {
		name string
		rate int
		n    int
	}{
		{"48k half second", 48000, 24000},
		{"44100 one second", 44100, 44100},
		{"32k", 32000, 16000},
		{"96k", 96000, 48000},
		{"8k upsample", 8000, 8000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New(tc.rate)
			require.NoError(t, err)

			// Feed in uneven slices to exercise the residual path.
			input := sine(440, tc.rate, 0.3, tc.n)
			total := 0
			for start := 0; start < len(input); {
				end := start + 333
				if end > len(input) {
					end = len(input)
				}
				total += len(r.ProcessBuffered(input[start:end]))
				start = end
			}

			expected := float64(tc.n) * float64(OutputRate) / float64(tc.rate)
			require.LessOrEqual(t, math.Abs(float64(total)-expected), float64(SincLen),
				"got %d samples, expected about %.0f", total, expected)
		})
	}
}

func TestPassthroughPreservesRMS(t *testing.T) {
	r, err := New(16000)
	require.NoError(t, err)

	input := sine(1000, 16000, 0.5, 16000)
	out := r.ProcessBuffered(input)
	require.Equal(t, len(input), len(out))

	inRMS := rms(input)
	outRMS := rms(out)
	require.InDelta(t, inRMS, outRMS, inRMS*0.005)
}

func TestResetClearsDelayLine(t *testing.T) {
	r, err := New(48000)
	require.NoError(t, err)

	// Prime the delay line with a loud signal, then reset.
	_ = r.ProcessBuffered(sine(1000, 48000, 1.0, 4800))
	r.Reset()

	out := r.ProcessBuffered(make([]float32, 4800))
	require.NotEmpty(t, out)
	require.Less(t, rms(out), 1e-6, "silence after reset must stay silent")
}

func TestResetClearsResidual(t *testing.T) {
	r, err := New(48000)
	require.NoError(t, err)

	// Leave a partial chunk buffered, then reset; it must not leak into
	// the next session's output count.
	_ = r.ProcessBuffered(make([]float32, 100))
	r.Reset()

	out := r.ProcessBuffered(make([]float32, 480))
	expected := float64(480) * float64(OutputRate) / 48000
	require.LessOrEqual(t, math.Abs(float64(len(out))-expected), float64(SincLen))
}

func TestProcessBufferedKeepsResidualBetweenCalls(t *testing.T) {
	r, err := New(48000)
	require.NoError(t, err)

	// 300 samples is less than one 480-sample chunk: no output yet.
	out := r.ProcessBuffered(make([]float32, 300))
	require.Empty(t, out)

	// 180 more completes the chunk.
	out = r.ProcessBuffered(make([]float32, 180))
	require.NotEmpty(t, out)
}
