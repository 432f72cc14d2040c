// Package testsupport generates audio fixtures for tests.
package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// flacBlockSize is the number of samples per FLAC frame written by WriteFLAC.
const flacBlockSize = 1000

// Tone describes a synthesized test signal.
type Tone struct {
	// Frequency of the sine in Hz. Zero produces silence.
	Frequency float64
	// Amplitude in [0, 1].
	Amplitude float64
	// SampleRate in Hz.
	SampleRate int
	// Samples is the number of frames to write.
	Samples int
	// Channels is 1 or 2.
	Channels int
	// RightGain scales the right channel of stereo tones relative to the
	// left. Negative values invert it.
	RightGain float64
}

// DefaultTone is a half-second 440 Hz mono sine at 8 kHz.
func DefaultTone() Tone {
	return Tone{
		Frequency:  440,
		Amplitude:  0.5,
		SampleRate: 8000,
		Samples:    4000,
		Channels:   1,
	}
}

// WriteWAV encodes tone as 16-bit PCM WAV at path.
func WriteWAV(t testing.TB, path string, tone Tone) {
	t.Helper()

	if tone.Channels == 0 {
		tone.Channels = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(tone.SampleRate),
		NumChannels: tone.Channels,
		Precision:   2,
	}
	if err := wav.Encode(f, toneStreamer(tone), format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteFLAC encodes tone as verbatim FLAC with bps bits per sample at path.
// tone.Samples must be at least 16.
func WriteFLAC(t testing.TB, path string, tone Tone, bps int) {
	t.Helper()

	if tone.Channels == 0 {
		tone.Channels = 1
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(tone.SampleRate),
		NChannels:     uint8(tone.Channels),
		BitsPerSample: uint8(bps),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Fatalf("flac encoder for %s: %v", path, err)
	}

	channels := frame.ChannelsMono
	if tone.Channels == 2 {
		channels = frame.ChannelsLR
	}
	full := float64(int64(1)<<(bps-1) - 1)
	left := Sine(tone.Frequency, tone.Amplitude, tone.SampleRate, tone.Samples)

	for start := 0; start < tone.Samples; start += flacBlockSize {
		end := min(start+flacBlockSize, tone.Samples)
		n := end - start
		subframes := make([]*frame.Subframe, tone.Channels)
		for c := range subframes {
			gain := 1.0
			if c == 1 {
				gain = tone.RightGain
			}
			samples := make([]int32, n)
			for i := range samples {
				samples[i] = int32(math.Round(left[start+i] * gain * full))
			}
			subframes[c] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(tone.SampleRate),
				Channels:          channels,
				BitsPerSample:     uint8(bps),
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			t.Fatalf("write flac frame at %d: %v", start, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close flac encoder for %s: %v", path, err)
	}
}

// WAVBytes returns the encoded WAV for tone.
func WAVBytes(t testing.TB, tone Tone) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	WriteWAV(t, path, tone)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// Mono returns the samples a decoder should produce for tone after
// averaging its channels.
func (t Tone) Mono() []float64 {
	amplitude := t.Amplitude
	if t.Channels == 2 {
		amplitude *= (1 + t.RightGain) / 2
	}
	return Sine(t.Frequency, amplitude, t.SampleRate, t.Samples)
}

// Sine returns n samples of a sine wave.
func Sine(freq, amplitude float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func toneStreamer(tone Tone) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= tone.Samples {
			return 0, false
		}
		n := 0
		for n < len(buf) && pos < tone.Samples {
			v := tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*float64(pos)/float64(tone.SampleRate))
			buf[n][0] = v
			buf[n][1] = v
			if tone.Channels == 2 {
				buf[n][1] = v * tone.RightGain
			}
			n++
			pos++
		}
		return n, true
	})
}
