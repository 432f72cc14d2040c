// Package bootstrap provides dependency initialization for the spectrogram server.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/spectroview/internal/analysis"
	"github.com/maauso/spectroview/internal/audio"
	"github.com/maauso/spectroview/internal/config"
	"github.com/maauso/spectroview/internal/render"
	"github.com/maauso/spectroview/internal/spectrogram"
	"github.com/maauso/spectroview/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service   *analysis.Service
	StaticDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := analysis.NewService(
		store,
		NewDecoder(cfg, logger),
		render.NewPlotRenderer(render.DefaultOptions()),
		analysis.WithSpectrogramOptions(SpectrogramOptions(cfg)),
		analysis.WithFixedImageName(cfg.FixedOutputName()),
		analysis.WithPublish(cfg.S3Enabled()),
		analysis.WithLogger(logger),
	)

	return &Dependencies{
		Service:   svc,
		StaticDir: cfg.StaticDir,
	}, nil
}

// SpectrogramOptions maps the analysis settings of cfg onto transform options.
func SpectrogramOptions(cfg *config.Config) spectrogram.Options {
	opts := spectrogram.DefaultOptions()
	opts.NFFT = cfg.NFFT
	opts.HopLength = cfg.HopLength
	opts.TopDB = cfg.TopDB
	return opts
}

// NewDecoder creates the file decoder, with the ffmpeg fallback when the
// binary can be found.
func NewDecoder(cfg *config.Config, logger *slog.Logger) *audio.FileDecoder {
	opts := []audio.DecoderOption{
		audio.WithTargetSampleRate(cfg.TargetSampleRate),
		audio.WithDecoderLogger(logger),
	}

	transcoder := audio.NewFFmpegTranscoder(cfg.FFmpegPath)
	if transcoder.Available() {
		opts = append(opts, audio.WithTranscoder(transcoder))
	} else {
		logger.Warn("ffmpeg not found, only WAV, FLAC, MP3 and Ogg Vorbis are supported",
			slog.String("ffmpeg_path", cfg.FFmpegPath),
		)
		opts = append(opts, audio.WithTranscoder(nil))
	}

	return audio.NewFileDecoder(opts...)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.UploadDir, cfg.StaticDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.UploadDir, cfg.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("static_dir", cfg.StaticDir),
	)
	return localStore, nil
}
