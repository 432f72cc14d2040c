package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// streamChunk is the number of frames pulled from a streamer per call.
const streamChunk = 4096

// resampleQuality is passed to beep.Resample; 4 is beep's recommended default.
const resampleQuality = 4

// beepDecodeFunc matches the Decode functions of beep's codec packages.
type beepDecodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

// decodeWAV wraps beep's WAV decoder, which divides 16- and 24-bit PCM by
// 2^n-1 instead of 2^(n-1) and so yields half-scale samples.
func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, format, err
	}
	if g := wavGain(format); g != 1 {
		return &scaledStreamer{StreamSeekCloser: s, gain: g}, format, nil
	}
	return s, format, nil
}

// wavGain returns the factor that brings beep's WAV samples back to [-1, 1].
func wavGain(format beep.Format) float64 {
	switch format.Precision {
	case 2:
		return float64(1<<16-1) / (1 << 15)
	case 3:
		return float64(1<<24-1) / (1 << 23)
	default:
		return 1
	}
}

// scaledStreamer multiplies every sample of the wrapped streamer by gain.
type scaledStreamer struct {
	beep.StreamSeekCloser
	gain float64
}

func (s *scaledStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.StreamSeekCloser.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] *= s.gain
		samples[i][1] *= s.gain
	}
	return n, ok
}

func decodeMP3(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(f)
}

// decodeWithBeep opens path and drains it through the given beep decoder.
func decodeWithBeep(path string, decode beepDecodeFunc) (buf *Buffer, err error) {
	// Some beep decoders index past the end of truncated frames.
	defer func() {
		if p := recover(); p != nil {
			buf, err = nil, fmt.Errorf("%w: decoder panic: %v", ErrMalformed, p)
		}
	}()

	f, err := os.Open(path) // #nosec G304 - path comes from our own upload directory
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() { _ = streamer.Close() }()

	samples, err := readMono(streamer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}, nil
}

// readMono drains s and averages the two beep channels. beep duplicates
// mono sources into both channels, so the average is exact for them.
func readMono(s beep.Streamer) ([]float64, error) {
	var out []float64
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

// sliceStreamer exposes a mono sample slice as a beep.Streamer.
func sliceStreamer(samples []float64) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for n < len(buf) && pos < len(samples) {
			buf[n][0] = samples[pos]
			buf[n][1] = samples[pos]
			n++
			pos++
		}
		return n, true
	})
}

// resample converts mono samples between rates with beep's resampler.
func resample(samples []float64, from, to int) ([]float64, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	r := beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), sliceStreamer(samples))
	return readMono(r)
}
