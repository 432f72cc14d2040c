// Package audio decodes uploaded audio files into mono sample buffers.
//
// Formats are recognized by content rather than file extension. WAV and MP3
// are decoded with beep, FLAC with mewkiz/flac and Ogg Vorbis with
// oggvorbis. Anything else is handed to ffmpeg, when available, and
// transcoded to WAV first.
package audio

import (
	"context"
	"errors"
	"time"
)

// Static errors for decoding.
var (
	// ErrUnsupportedFormat is returned when no decoder accepts the input.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrMalformed is returned when a decoder recognized the format but
	// could not read the stream.
	ErrMalformed = errors.New("malformed audio stream")
	// ErrEmptyAudio is returned when a stream decodes to zero samples.
	ErrEmptyAudio = errors.New("audio contains no samples")
)

// IsInputError reports whether err describes a problem with the audio
// itself rather than with the environment.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrEmptyAudio)
}

// Buffer is decoded audio downmixed to a single channel.
type Buffer struct {
	// Samples holds mono samples in [-1, 1].
	Samples []float64
	// SampleRate is the rate of Samples in Hz.
	SampleRate int
	// Channels is the channel count of the decoded stream before downmix.
	Channels int
	// Format is the detected MIME type of the source file.
	Format string
}

// Duration returns the length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Decoder defines the interface for turning an audio file into samples.
type Decoder interface {
	// Decode reads the file at path and returns its mono samples.
	Decode(ctx context.Context, path string) (*Buffer, error)
}
