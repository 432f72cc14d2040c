package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// maxPrealloc bounds how much of the header's sample count is trusted for
// preallocation.
const maxPrealloc = 1 << 26

// decodeFLAC reads every frame of a FLAC file and averages its subframes.
func decodeFLAC(path string) (*Buffer, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() { _ = stream.Close() }()

	info := stream.Info
	if info == nil || info.BitsPerSample == 0 || info.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing stream info", ErrMalformed)
	}
	scale := float64(int64(1) << (info.BitsPerSample - 1))

	var out []float64
	if info.NSamples > 0 && info.NSamples <= maxPrealloc {
		out = make([]float64, 0, info.NSamples)
	}
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		channels := len(frame.Subframes)
		if channels == 0 {
			continue
		}
		for i := 0; i < frame.Subframes[0].NSamples; i++ {
			var sum float64
			for _, sub := range frame.Subframes {
				sum += float64(sub.Samples[i])
			}
			out = append(out, sum/float64(channels)/scale)
		}
	}

	return &Buffer{
		Samples:    out,
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
	}, nil
}
