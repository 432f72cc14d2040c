package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/spectroview/internal/analysis"
	"github.com/maauso/spectroview/internal/spectrogram"
	"github.com/maauso/spectroview/internal/testsupport"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRender_ExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tone.wav")
	testsupport.WriteWAV(t, input, testsupport.DefaultTone())
	output := filepath.Join(dir, "out", "tone.png")

	stdout, err := runCommand(t, input, "-o", output, "--n-fft", "512", "--hop", "128")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+output)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestRender_DefaultOutputName(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tone.wav")
	testsupport.WriteWAV(t, input, testsupport.DefaultTone())
	t.Chdir(dir)

	_, err := runCommand(t, input)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "spectrogram_tone.wav.png"))
}

func TestRender_NotAudio(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello"), 0o600))

	_, err := runCommand(t, input, "-o", filepath.Join(dir, "x.png"), "--ffmpeg", "no-such-ffmpeg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, analysis.ErrUnsupportedInput))
	assert.NoFileExists(t, filepath.Join(dir, "x.png"))
}

func TestRender_InvalidFlags(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tone.wav")
	testsupport.WriteWAV(t, input, testsupport.DefaultTone())

	_, err := runCommand(t, input, "--top-db", "0")
	require.ErrorIs(t, err, spectrogram.ErrInvalidOptions)

	_, err = runCommand(t, input, "--sample-rate=-1")
	require.Error(t, err)

	_, err = runCommand(t)
	require.Error(t, err)
}
