package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/maauso/spectroview/internal/testsupport"
)

// lavfiStereo is a one second 440 Hz tone at 44.1 kHz whose right channel
// is half the left one. The lavfi sine source has amplitude 1/8.
const lavfiStereo = "sine=frequency=440:sample_rate=44100:duration=1,pan=stereo|c0=c0|c1=0.5*c0"

// lavfiMono is the same tone on a single channel.
const lavfiMono = "sine=frequency=440:sample_rate=44100:duration=1"

// encodeLavfi renders a lavfi source to path with the first encoder in
// codecs that ffmpeg accepts. It skips the test when none is available.
func encodeLavfi(t *testing.T, path, source string, codecs ...[]string) {
	t.Helper()
	checkFFmpeg(t)

	var failures []string
	for _, codec := range codecs {
		args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "lavfi", "-i", source}
		args = append(args, codec...)
		args = append(args, path)
		out, err := exec.Command("ffmpeg", args...).CombinedOutput()
		if err == nil {
			return
		}
		failures = append(failures, strings.TrimSpace(string(out)))
	}
	t.Skipf("ffmpeg cannot encode %s: %s", filepath.Ext(path), strings.Join(failures, "; "))
}

var (
	mp3Codecs    = [][]string{{"-c:a", "libmp3lame", "-b:a", "192k"}}
	vorbisCodecs = [][]string{
		{"-c:a", "libvorbis", "-q:a", "6"},
		{"-c:a", "vorbis", "-strict", "experimental"},
	}
)

func TestFileDecoder_FLACStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.flac")
	tone := testsupport.DefaultTone()
	tone.Channels = 2
	tone.RightGain = 0.5
	testsupport.WriteFLAC(t, path, tone, 16)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "audio/flac", buf.Format)
	assert.Equal(t, tone.SampleRate, buf.SampleRate)
	assert.Equal(t, 2, buf.Channels)
	require.Len(t, buf.Samples, tone.Samples)

	want := tone.Mono()
	for _, i := range []int{1, 10, 999, 1000, 2501, 3999} {
		assert.InDelta(t, want[i], buf.Samples[i], 1e-3, "sample %d", i)
	}
	assert.InDelta(t, 0.375, floats.Max(buf.Samples), 1e-3)
}

func TestFileDecoder_FLAC24BitMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono24.flac")
	tone := testsupport.DefaultTone()
	tone.SampleRate = 16000
	tone.Samples = 1600
	testsupport.WriteFLAC(t, path, tone, 24)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 16000, buf.SampleRate)
	assert.Equal(t, 1, buf.Channels)
	require.Len(t, buf.Samples, tone.Samples)

	want := tone.Mono()
	for i := range want {
		assert.InDelta(t, want[i], buf.Samples[i], 1e-5, "sample %d", i)
	}
}

func TestFileDecoder_FLACTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.flac")
	testsupport.WriteFLAC(t, path, testsupport.DefaultTone(), 16)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Cut inside the last frame.
	require.NoError(t, os.WriteFile(path, data[:len(data)-100], 0o644))

	_, err = nativeOnly().Decode(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFileDecoder_FLACFromFFmpeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.flac")
	encodeLavfi(t, path, lavfiStereo, []string{"-c:a", "flac", "-sample_fmt", "s16"})

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "audio/flac", buf.Format)
	assert.Equal(t, 44100, buf.SampleRate)
	assert.Equal(t, 2, buf.Channels)
	assert.Len(t, buf.Samples, 44100)
	// (1/8 + 1/16) / 2
	assert.InDelta(t, 0.09375, floats.Max(buf.Samples), 1e-3)
}

func TestFileDecoder_MP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.mp3")
	encodeLavfi(t, path, lavfiStereo, mp3Codecs...)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "audio/mpeg", buf.Format)
	assert.Equal(t, 44100, buf.SampleRate)
	assert.Equal(t, 2, buf.Channels)
	// Encoder delay and frame padding add up to a few frames of 1152.
	assert.InDelta(t, 44100, len(buf.Samples), 4*1152)
	assert.InDelta(t, 0.09375, floats.Max(buf.Samples), 0.015)
}

func TestFileDecoder_OggStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.ogg")
	encodeLavfi(t, path, lavfiStereo, vorbisCodecs...)

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "audio/ogg", buf.Format)
	assert.Equal(t, 44100, buf.SampleRate)
	assert.Equal(t, 2, buf.Channels)
	assert.InDelta(t, 44100, len(buf.Samples), 1024)
	assert.InDelta(t, 0.09375, floats.Max(buf.Samples), 0.015)
}

func TestFileDecoder_OggMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.ogg")
	encodeLavfi(t, path, lavfiMono, []string{"-c:a", "libvorbis", "-q:a", "6"})

	buf, err := nativeOnly().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, buf.Channels)
	// Every decoded value is one frame, not half of an interleaved pair.
	assert.InDelta(t, 44100, len(buf.Samples), 1024)
	assert.InDelta(t, 0.125, floats.Max(buf.Samples), 0.015)
}

// malformedOgg has an Ogg capture pattern and a vorbis identification
// marker at the offset content sniffing looks at, followed by junk.
func malformedOgg() []byte {
	data := make([]byte, 28, 128)
	copy(data, "OggS")
	data = append(data, "\x01vorbis"...)
	return append(data, strings.Repeat("not a vorbis header ", 4)...)
}

func TestFileDecoder_MalformedOgg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.ogg")
	require.NoError(t, os.WriteFile(path, malformedOgg(), 0o644))

	mt, err := mimetype.DetectFile(path)
	require.NoError(t, err)
	require.True(t, mt.Is("audio/ogg"), "detected %s", mt)

	_, err = nativeOnly().Decode(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, IsInputError(err))
}

func TestFileDecoder_MalformedOggFallsBackToFFmpeg(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "broken.ogg")
	require.NoError(t, os.WriteFile(path, malformedOgg(), 0o644))

	d := NewFileDecoder(WithDecoderLogger(quietLogger()))
	_, err := d.Decode(context.Background(), path)
	require.Error(t, err)
	// The error comes from the ffmpeg attempt, not the native decoder.
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "ffmpeg")
}

func TestIsFormat(t *testing.T) {
	tests := []struct {
		name  string
		mime  string
		names []string
		want  bool
	}{
		{name: "exact", mime: "audio/ogg", names: []string{"audio/ogg"}, want: true},
		{name: "parent", mime: "audio/ogg", names: []string{"application/ogg"}, want: true},
		{name: "child not matched", mime: "application/ogg", names: []string{"audio/ogg"}, want: false},
		{name: "alias", mime: "audio/wav", names: []string{"audio/x-wav"}, want: true},
		{name: "any of", mime: "audio/flac", names: []string{"audio/mpeg", "audio/flac"}, want: true},
		{name: "other", mime: "audio/mpeg", names: []string{"audio/ogg", "audio/wav"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := mimetype.Lookup(tt.mime)
			require.NotNil(t, mt, tt.mime)
			assert.Equal(t, tt.want, isFormat(mt, tt.names...))
		})
	}
}
