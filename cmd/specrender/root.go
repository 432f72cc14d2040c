package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/spectroview/internal/analysis"
	"github.com/maauso/spectroview/internal/audio"
	"github.com/maauso/spectroview/internal/render"
	"github.com/maauso/spectroview/internal/spectrogram"
	"github.com/maauso/spectroview/internal/storage"
)

type renderFlags struct {
	output     string
	nfft       int
	hop        int
	topDB      float64
	sampleRate int
	ffmpeg     string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	def := spectrogram.DefaultOptions()
	flags := renderFlags{}

	rootCmd := &cobra.Command{
		Use:           "specrender <audio-file>",
		Short:         "Render the spectrogram of an audio file to PNG",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], flags)
		},
	}

	rootCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output PNG path (default spectrogram_<file>.png in the current directory)")
	rootCmd.Flags().IntVar(&flags.nfft, "n-fft", def.NFFT, "STFT frame length")
	rootCmd.Flags().IntVar(&flags.hop, "hop", def.HopLength, "STFT hop length")
	rootCmd.Flags().Float64Var(&flags.topDB, "top-db", def.TopDB, "Dynamic range below the peak, in dB")
	rootCmd.Flags().IntVar(&flags.sampleRate, "sample-rate", 0, "Resample to this rate before analysis (0 keeps the native rate)")
	rootCmd.Flags().StringVar(&flags.ffmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary used for formats without a native decoder")
	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log decoding and rendering details")

	return rootCmd
}

func runRender(cmd *cobra.Command, input string, flags renderFlags) error {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := spectrogram.DefaultOptions()
	opts.NFFT = flags.nfft
	opts.HopLength = flags.hop
	opts.TopDB = flags.topDB
	if err := opts.Validate(); err != nil {
		return err
	}
	if flags.sampleRate < 0 {
		return fmt.Errorf("invalid --sample-rate %d", flags.sampleRate)
	}

	output := flags.output
	if output == "" {
		base, err := storage.BaseName(input)
		if err != nil {
			return fmt.Errorf("derive output name: %w", err)
		}
		output = "spectrogram_" + base + ".png"
	}
	dir, name := filepath.Split(output)
	if dir == "" {
		dir = "."
	}
	out, err := storage.NewLocalStorage(dir, dir)
	if err != nil {
		return fmt.Errorf("prepare output directory: %w", err)
	}

	decoderOpts := []audio.DecoderOption{
		audio.WithTargetSampleRate(flags.sampleRate),
		audio.WithDecoderLogger(logger),
	}
	if t := audio.NewFFmpegTranscoder(flags.ffmpeg); t.Available() {
		decoderOpts = append(decoderOpts, audio.WithTranscoder(t))
	} else {
		decoderOpts = append(decoderOpts, audio.WithTranscoder(nil))
	}

	svc := analysis.NewService(out,
		audio.NewFileDecoder(decoderOpts...),
		render.NewPlotRenderer(render.DefaultOptions()),
		analysis.WithSpectrogramOptions(opts),
		analysis.WithLogger(logger),
	)

	var img bytes.Buffer
	if err := svc.Render(cmd.Context(), input, &img); err != nil {
		return err
	}
	size := img.Len()

	path, err := out.SaveImage(cmd.Context(), name, &img)
	if err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", path, humanize.Bytes(uint64(size)))
	return nil
}
