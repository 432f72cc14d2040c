package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// decodeOgg reads an Ogg Vorbis file and averages its channels. beep's
// vorbis streamer assumes two interleaved channels, which halves mono files.
func decodeOgg(path string) (buf *Buffer, err error) {
	defer func() {
		if p := recover(); p != nil {
			buf, err = nil, fmt.Errorf("%w: vorbis decoder panic: %v", ErrMalformed, p)
		}
	}()

	f, err := os.Open(path) // #nosec G304 - path comes from our own upload directory
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	channels := r.Channels()
	if channels < 1 || r.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: invalid vorbis header", ErrMalformed)
	}

	var out []float64
	if n := r.Length(); n > 0 && n <= maxPrealloc {
		out = make([]float64, 0, n)
	}
	chunk := make([]float32, streamChunk*channels)
	for {
		n, err := r.Read(chunk)
		for i := 0; i+channels <= n; i += channels {
			var sum float64
			for _, v := range chunk[i : i+channels] {
				sum += float64(v)
			}
			out = append(out, sum/float64(channels))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	return &Buffer{
		Samples:    out,
		SampleRate: r.SampleRate(),
		Channels:   channels,
	}, nil
}
