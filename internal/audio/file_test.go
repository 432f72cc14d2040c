package audio

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/maauso/spectroview/internal/testsupport"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// nativeOnly returns a decoder without the ffmpeg fallback.
func nativeOnly() *FileDecoder {
	return NewFileDecoder(WithTranscoder(nil), WithDecoderLogger(quietLogger()))
}

func TestFileDecoder_WAVMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	tone := testsupport.DefaultTone()
	testsupport.WriteWAV(t, path, tone)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, tone.SampleRate, buf.SampleRate)
	assert.Equal(t, 1, buf.Channels)
	assert.Equal(t, "audio/wav", buf.Format)
	assert.Len(t, buf.Samples, tone.Samples)
	assert.Equal(t, 500*time.Millisecond, buf.Duration())

	want := testsupport.Sine(tone.Frequency, tone.Amplitude, tone.SampleRate, tone.Samples)
	for _, i := range []int{1, 10, 123, 3999} {
		assert.InDelta(t, want[i], buf.Samples[i], 1e-3, "sample %d", i)
	}
}

func TestFileDecoder_WAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	tone := testsupport.DefaultTone()
	tone.Channels = 2
	tone.RightGain = 0.5
	testsupport.WriteWAV(t, path, tone)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Channels)
	require.Len(t, buf.Samples, tone.Samples)
	// (v + v/2) / 2
	want := tone.Mono()
	for i := range want {
		assert.InDelta(t, want[i], buf.Samples[i], 1e-3, "sample %d", i)
	}
	assert.InDelta(t, 0.375, floats.Max(buf.Samples), 1e-3)
}

func TestFileDecoder_WAVStereoCancels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.wav")
	tone := testsupport.DefaultTone()
	tone.Channels = 2
	tone.RightGain = -1
	testsupport.WriteWAV(t, path, tone)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	for _, s := range buf.Samples {
		assert.InDelta(t, 0, s, 1e-3)
	}
}

func TestFileDecoder_WAVFullScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	tone := testsupport.DefaultTone()
	tone.Amplitude = 1
	// Quarter-rate sine: samples land exactly on the peaks.
	tone.Frequency = 2000
	testsupport.WriteWAV(t, path, tone)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.InDelta(t, 1, floats.Max(buf.Samples), 1e-3)
	assert.InDelta(t, -1, floats.Min(buf.Samples), 1e-3)
}

func TestWAVGain(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		want      float64
	}{
		{name: "8-bit", precision: 1, want: 1},
		{name: "16-bit", precision: 2, want: 65535.0 / 32768},
		{name: "24-bit", precision: 3, want: 16777215.0 / 8388608},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, wavGain(beep.Format{Precision: tt.precision}), 1e-12)
		})
	}
}

func TestFileDecoder_Resample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	tone := testsupport.DefaultTone()
	testsupport.WriteWAV(t, path, tone)

	d := NewFileDecoder(WithTranscoder(nil), WithTargetSampleRate(16000), WithDecoderLogger(quietLogger()))
	buf, err := d.Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 16000, buf.SampleRate)
	assert.InDelta(t, 2*tone.Samples, len(buf.Samples), 32)
}

func TestFileDecoder_NotAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio\n"), 0o644))

	_, err := nativeOnly().Decode(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, IsInputError(err))
}

func TestFileDecoder_CorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	data := append([]byte("RIFF\x24\x00\x00\x00WAVE"), []byte("garbage garbage garbage garbage")...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := nativeOnly().Decode(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsInputError(err), "got %v", err)
}

func TestFileDecoder_EmptyWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	tone := testsupport.DefaultTone()
	tone.Samples = 0
	testsupport.WriteWAV(t, path, tone)

	_, err := nativeOnly().Decode(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsInputError(err), "got %v", err)
}

func TestFileDecoder_MissingFile(t *testing.T) {
	_, err := nativeOnly().Decode(context.Background(), "/non/existent/file.wav")
	require.Error(t, err)
	assert.False(t, IsInputError(err))
}

func TestFileDecoder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := nativeOnly().Decode(ctx, "/some/path.wav")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFileDecoder_FFmpegFallback(t *testing.T) {
	checkFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "tone.aiff")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-ar", "8000", "-ac", "1",
		input,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	d := NewFileDecoder(WithDecoderLogger(quietLogger()))
	buf, err := d.Decode(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 8000, buf.SampleRate)
	assert.InDelta(t, 8000, len(buf.Samples), 100)
	assert.NotEqual(t, "audio/wav", buf.Format)
}

func TestFileDecoder_FFmpegRejectsGarbage(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe}, 0o644))

	d := NewFileDecoder(WithDecoderLogger(quietLogger()))
	_, err := d.Decode(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFFmpegTranscoder_MissingBinary(t *testing.T) {
	tr := NewFFmpegTranscoder("/non/existent/ffmpeg")
	assert.False(t, tr.Available())

	d := NewFileDecoder(WithTranscoder(tr), WithDecoderLogger(quietLogger()))
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	_, err := d.Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewFFmpegTranscoder_DefaultPath(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewFFmpegTranscoder("").ffmpegPath)
}
