// Package spectrogram computes decibel-scaled magnitude spectrograms.
//
// Frames are centered: the signal is zero padded by half a frame on both
// sides before the short-time Fourier transform, so frame t is centered on
// sample t*hop. Magnitudes are converted to decibels relative to the peak
// magnitude of the whole signal and clipped at TopDB below the maximum.
package spectrogram

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"github.com/r9y9/gossp/stft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Static errors for spectrogram computation.
var (
	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("invalid spectrogram options")
	// ErrNoSamples is returned for an empty signal.
	ErrNoSamples = errors.New("no samples to analyze")
)

// Options configures the transform.
type Options struct {
	// NFFT is the frame length and FFT size.
	NFFT int
	// HopLength is the number of samples between successive frames.
	HopLength int
	// TopDB is the dynamic range kept below the peak.
	TopDB float64
	// AMin is the magnitude floor applied before taking the logarithm.
	AMin float64
}

// DefaultOptions returns a 2048-point transform with a 512-sample hop,
// 80 dB of dynamic range and a 1e-5 amplitude floor.
func DefaultOptions() Options {
	return Options{
		NFFT:      2048,
		HopLength: 512,
		TopDB:     80,
		AMin:      1e-5,
	}
}

// Validate checks that the options describe a usable transform.
func (o Options) Validate() error {
	switch {
	case o.NFFT < 2:
		return fmt.Errorf("%w: n_fft=%d", ErrInvalidOptions, o.NFFT)
	case o.HopLength < 1:
		return fmt.Errorf("%w: hop_length=%d", ErrInvalidOptions, o.HopLength)
	case o.TopDB <= 0:
		return fmt.Errorf("%w: top_db=%g", ErrInvalidOptions, o.TopDB)
	case o.AMin <= 0:
		return fmt.Errorf("%w: amin=%g", ErrInvalidOptions, o.AMin)
	}
	return nil
}

// Spectrogram is a decibel matrix indexed as DB[frame][bin].
type Spectrogram struct {
	DB         [][]float64
	SampleRate int
	NFFT       int
	HopLength  int
	TopDB      float64
}

// Frames returns the number of time frames.
func (s *Spectrogram) Frames() int {
	return len(s.DB)
}

// Bins returns the number of frequency bins (NFFT/2 + 1).
func (s *Spectrogram) Bins() int {
	if len(s.DB) == 0 {
		return 0
	}
	return len(s.DB[0])
}

// Frequency returns the center frequency of bin in Hz.
func (s *Spectrogram) Frequency(bin int) float64 {
	return float64(bin) * float64(s.SampleRate) / float64(s.NFFT)
}

// Time returns the center time of frame in seconds.
func (s *Spectrogram) Time(frame int) float64 {
	return float64(frame) * float64(s.HopLength) / float64(s.SampleRate)
}

// Duration returns the time covered by the frames in seconds.
func (s *Spectrogram) Duration() float64 {
	return s.Time(s.Frames())
}

// Compute returns the dB spectrogram of samples.
func Compute(samples []float64, sampleRate int, opts Options) (*Spectrogram, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample_rate=%d", ErrInvalidOptions, sampleRate)
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	mag := Magnitude(samples, opts.NFFT, opts.HopLength)

	return &Spectrogram{
		DB:         AmplitudeToDB(mag, opts.AMin, opts.TopDB),
		SampleRate: sampleRate,
		NFFT:       opts.NFFT,
		HopLength:  opts.HopLength,
		TopDB:      opts.TopDB,
	}, nil
}

// Magnitude returns |STFT| of samples as [frame][bin] with nfft/2+1 bins
// per frame, using a periodic Hann window and centered frames. Frames are
// transformed one at a time so only the magnitude matrix is retained.
func Magnitude(samples []float64, nfft, hop int) [][]float64 {
	pad := nfft / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	s := stft.New(hop, nfft)
	// Periodic Hann: the symmetric window one sample longer, truncated.
	s.Window = window.Hann(nfft + 1)[:nfft]

	fft := fourier.NewFFT(nfft)
	windowed := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)

	mag := make([][]float64, s.NumFrames(padded))
	for t := range mag {
		floats.MulTo(windowed, s.FrameAt(padded, t), s.Window)
		fft.Coefficients(coeffs, windowed)

		row := make([]float64, len(coeffs))
		for k, c := range coeffs {
			row[k] = cmplx.Abs(c)
		}
		mag[t] = row
	}
	return mag
}

// AmplitudeToDB converts magnitudes to decibels relative to their maximum:
// 20*log10(max(amin, m)) - 20*log10(max(amin, peak)), clipped at topDB
// below the largest resulting value. mag is overwritten and returned.
func AmplitudeToDB(mag [][]float64, amin, topDB float64) [][]float64 {
	peak := 0.0
	for _, row := range mag {
		if len(row) > 0 {
			peak = math.Max(peak, floats.Max(row))
		}
	}
	ref := 20 * math.Log10(math.Max(amin, peak))

	top := math.Inf(-1)
	for _, row := range mag {
		for k, m := range row {
			row[k] = 20*math.Log10(math.Max(amin, m)) - ref
		}
		if len(row) > 0 {
			top = math.Max(top, floats.Max(row))
		}
	}

	floor := top - topDB
	for _, row := range mag {
		for k := range row {
			if row[k] < floor {
				row[k] = floor
			}
		}
	}
	return mag
}
