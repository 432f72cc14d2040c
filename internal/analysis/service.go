package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maauso/spectroview/internal/audio"
	"github.com/maauso/spectroview/internal/render"
	"github.com/maauso/spectroview/internal/spectrogram"
	"github.com/maauso/spectroview/internal/storage"
)

// Static errors for failure classification.
var (
	// ErrUnsupportedInput is returned when the upload cannot be decoded as audio.
	ErrUnsupportedInput = errors.New("unsupported or corrupt audio input")
	// ErrRenderFailed is returned when the transform, the plot or a disk write fails.
	ErrRenderFailed = errors.New("spectrogram rendering failed")
)

const (
	// FixedImageName is the image written by every request in fixed naming mode.
	FixedImageName = "spectrogram.png"
	// StaticURLPrefix is the URL path the static directory is served under.
	StaticURLPrefix = "/static/"
	// RemotePrefix is the S3 key prefix for published images.
	RemotePrefix = "spectrograms/"
)

// Upload is a file received from a client.
type Upload struct {
	// Filename is the client-supplied name. Only its base name is used.
	Filename string
	// Body is the file content. A nil Body means no file was sent.
	Body io.Reader
	// Size is the declared content length, used for logging only.
	Size int64
}

// Result describes the outcome of processing one upload.
type Result struct {
	// State is the terminal request state.
	State State
	// UploadPath is where the upload was stored, if it was.
	UploadPath string
	// ImageName is the file name of the rendered image.
	ImageName string
	// ImagePath is the local path of the rendered image.
	ImagePath string
	// ImageURL is the page-relative URL of the rendered image.
	ImageURL string
	// RemoteURL is the S3 URL when the image was published.
	RemoteURL string
}

// Service orchestrates upload storage, decoding, the transform and rendering.
type Service struct {
	store    storage.Storage
	decoder  audio.Decoder
	renderer render.Renderer
	opts     spectrogram.Options
	fixed    bool
	publish  bool
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSpectrogramOptions sets the transform parameters.
func WithSpectrogramOptions(opts spectrogram.Options) Option {
	return func(s *Service) {
		s.opts = opts
	}
}

// WithFixedImageName makes every request write FixedImageName.
func WithFixedImageName(fixed bool) Option {
	return func(s *Service) {
		s.fixed = fixed
	}
}

// WithPublish mirrors rendered images to S3 through the storage.
func WithPublish(publish bool) Option {
	return func(s *Service) {
		s.publish = publish
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service with default spectrogram options and
// per-file image names.
func NewService(store storage.Storage, decoder audio.Decoder, renderer render.Renderer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		decoder:  decoder,
		renderer: renderer,
		opts:     spectrogram.DefaultOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImageName returns the image file name for an upload base name.
func (s *Service) ImageName(base string) string {
	if s.fixed {
		return FixedImageName
	}
	return "spectrogram_" + base + ".png"
}

// Process stores the upload and renders its spectrogram.
//
// A missing file or a name with no usable base name yields a FORM_ONLY
// result and a nil error. Processing failures yield a FORM_ONLY result and
// an error wrapping ErrUnsupportedInput or ErrRenderFailed; logging them is
// left to the caller.
func (s *Service) Process(ctx context.Context, up Upload) (*Result, error) {
	req := newRequest()
	res := &Result{}

	finish := func(to State, err error) (*Result, error) {
		if terr := req.transitionTo(to); terr != nil {
			return nil, fmt.Errorf("%s -> %s: %w", req.state, to, terr)
		}
		res.State = req.state
		return res, err
	}

	if up.Body == nil {
		return finish(StateFormOnly, nil)
	}
	base, err := storage.BaseName(up.Filename)
	if err != nil {
		s.logger.Info("upload has no usable file name", slog.String("filename", up.Filename))
		return finish(StateFormOnly, nil)
	}

	uploadPath, err := s.store.SaveUpload(ctx, base, up.Body)
	if err != nil {
		return finish(StateFormOnly, fmt.Errorf("%w: save upload: %w", ErrRenderFailed, err))
	}
	res.UploadPath = uploadPath
	if err := req.transitionTo(StateSaved); err != nil {
		return nil, err
	}

	s.logger.Info("upload saved",
		slog.String("path", uploadPath),
		slog.String("size", humanize.Bytes(uint64(max(up.Size, 0)))),
	)

	var img bytes.Buffer
	if err := s.Render(ctx, uploadPath, &img); err != nil {
		return finish(StateFormOnly, err)
	}

	name := s.ImageName(base)
	imagePath, err := s.store.SaveImage(ctx, name, bytes.NewReader(img.Bytes()))
	if err != nil {
		return finish(StateFormOnly, fmt.Errorf("%w: save image: %w", ErrRenderFailed, err))
	}
	res.ImageName = name
	res.ImagePath = imagePath
	res.ImageURL = StaticURLPrefix + url.PathEscape(name)

	if s.publish {
		remote, err := s.store.UploadToS3(ctx, RemotePrefix+name, bytes.NewReader(img.Bytes()))
		if err != nil {
			s.logger.Warn("failed to publish image",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		} else {
			res.RemoteURL = remote
		}
	}

	s.logger.Info("spectrogram rendered",
		slog.String("image", imagePath),
		slog.String("image_size", humanize.Bytes(uint64(img.Len()))),
	)

	return finish(StateRendered, nil)
}

// Render decodes the audio file at path and writes its spectrogram image
// to w. Errors wrap ErrUnsupportedInput or ErrRenderFailed.
func (s *Service) Render(ctx context.Context, path string, w io.Writer) error {
	start := time.Now()

	buf, err := s.decoder.Decode(ctx, path)
	if err != nil {
		if audio.IsInputError(err) {
			return fmt.Errorf("%w: %w", ErrUnsupportedInput, err)
		}
		return fmt.Errorf("%w: decode: %w", ErrRenderFailed, err)
	}

	sg, err := spectrogram.Compute(buf.Samples, buf.SampleRate, s.opts)
	if err != nil {
		return fmt.Errorf("%w: transform: %w", ErrRenderFailed, err)
	}

	if err := s.renderer.Render(ctx, sg, w); err != nil {
		return fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	s.logger.Debug("spectrogram computed",
		slog.String("path", path),
		slog.String("format", buf.Format),
		slog.Int("sample_rate", buf.SampleRate),
		slog.Int("channels", buf.Channels),
		slog.Duration("audio", buf.Duration()),
		slog.Int("frames", sg.Frames()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
