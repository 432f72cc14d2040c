package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FFmpegTranscoder converts arbitrary media into 16-bit mono WAV using the
// ffmpeg CLI.
type FFmpegTranscoder struct {
	ffmpegPath string
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegTranscoder(ffmpegPath string) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath}
}

// Available reports whether the ffmpeg binary can be found.
func (t *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(t.ffmpegPath)
	return err == nil
}

// ToWAV transcodes inputPath into a temporary WAV file and returns its path.
// The caller removes the returned file. Sample rate is left untouched.
func (t *FFmpegTranscoder) ToWAV(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("stat input: %w", err)
	}

	tmp, err := os.CreateTemp("", "spectroview-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	outputPath := tmp.Name()
	_ = tmp.Close()

	args := []string{
		"-y", // Overwrite the placeholder temp file
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",                  // Drop any video/cover art streams
		"-ac", "1",             // Downmix to mono
		"-acodec", "pcm_s16le", // 16-bit PCM
		"-f", "wav",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: ffmpeg: %v, stderr: %s", ErrUnsupportedFormat, err, strings.TrimSpace(stderr.String()))
	}

	return outputPath, nil
}
