package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// FileDecoder implements Decoder for files on local disk.
type FileDecoder struct {
	transcoder *FFmpegTranscoder
	targetRate int
	logger     *slog.Logger
}

// DecoderOption is a function that configures a FileDecoder.
type DecoderOption func(*FileDecoder)

// WithTranscoder sets the fallback used for formats without a native
// decoder. A nil transcoder disables the fallback.
func WithTranscoder(t *FFmpegTranscoder) DecoderOption {
	return func(d *FileDecoder) {
		d.transcoder = t
	}
}

// WithTargetSampleRate resamples decoded audio to rate Hz.
// Zero keeps the native rate.
func WithTargetSampleRate(rate int) DecoderOption {
	return func(d *FileDecoder) {
		if rate >= 0 {
			d.targetRate = rate
		}
	}
}

// WithDecoderLogger sets the logger.
func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *FileDecoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewFileDecoder creates a FileDecoder. By default it falls back to the
// ffmpeg found in PATH and keeps the native sample rate.
func NewFileDecoder(opts ...DecoderOption) *FileDecoder {
	d := &FileDecoder{
		transcoder: NewFFmpegTranscoder(""),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode implements Decoder.Decode.
func (d *FileDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect format: %w", err)
	}

	buf, err := d.decodeNative(path, mt)
	if err != nil {
		d.logger.Debug("native decode unavailable, trying ffmpeg",
			slog.String("path", path),
			slog.String("mime", mt.String()),
			slog.String("error", err.Error()),
		)
		buf, err = d.decodeTranscoded(ctx, path, err)
		if err != nil {
			return nil, err
		}
	}
	buf.Format = mt.String()

	if len(buf.Samples) == 0 {
		return nil, ErrEmptyAudio
	}

	if d.targetRate > 0 && d.targetRate != buf.SampleRate {
		resampled, err := resample(buf.Samples, buf.SampleRate, d.targetRate)
		if err != nil {
			return nil, fmt.Errorf("resample %d Hz to %d Hz: %w", buf.SampleRate, d.targetRate, err)
		}
		buf.Samples = resampled
		buf.SampleRate = d.targetRate
	}

	d.logger.Debug("audio decoded",
		slog.String("path", path),
		slog.String("mime", buf.Format),
		slog.Int("sample_rate", buf.SampleRate),
		slog.Int("channels", buf.Channels),
		slog.Duration("duration", buf.Duration()),
	)

	return buf, nil
}

// decodeNative dispatches on the sniffed MIME type.
func (d *FileDecoder) decodeNative(path string, mt *mimetype.MIME) (*Buffer, error) {
	switch {
	case isFormat(mt, "audio/wav"):
		return decodeWithBeep(path, decodeWAV)
	case isFormat(mt, "audio/flac"):
		return decodeFLAC(path)
	case isFormat(mt, "audio/mpeg"):
		return decodeWithBeep(path, decodeMP3)
	case isFormat(mt, "audio/ogg"):
		return decodeOgg(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
}

// decodeTranscoded runs the ffmpeg fallback. nativeErr is returned when no
// transcoder is available.
func (d *FileDecoder) decodeTranscoded(ctx context.Context, path string, nativeErr error) (*Buffer, error) {
	if d.transcoder == nil || !d.transcoder.Available() {
		return nil, nativeErr
	}

	wavPath, err := d.transcoder.ToWAV(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(wavPath) }()

	return decodeWithBeep(wavPath, decodeWAV)
}

// isFormat reports whether mt or one of its ancestors matches any name.
func isFormat(mt *mimetype.MIME, names ...string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, n := range names {
			if m.Is(n) {
				return true
			}
		}
	}
	return false
}

// Verify interface implementation at compile time.
var _ Decoder = (*FileDecoder)(nil)
