// Package render rasterizes spectrograms into PNG images with gonum/plot.
//
// The image has time on the x axis, a logarithmic frequency axis, a
// decibel colour bar on the right and a title, laid out like a 10x4 inch
// figure at 100 DPI by default.
package render

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/maauso/spectroview/internal/spectrogram"
)

// Static errors for rendering.
var (
	// ErrEmptySpectrogram is returned when there is nothing to draw.
	ErrEmptySpectrogram = errors.New("spectrogram has too few frames or bins to draw")
	// ErrRender is returned when the plotting library fails.
	ErrRender = errors.New("render spectrogram")
)

// Renderer defines the interface for turning a spectrogram into an image.
type Renderer interface {
	// Render writes the encoded image of s to w.
	Render(ctx context.Context, s *spectrogram.Spectrogram, w io.Writer) error
}

// Options configures the figure.
type Options struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
	Title  string
	// ColorBarWidth is the strip reserved on the right for the colour bar
	// and its labels.
	ColorBarWidth vg.Length
	// MaxColumns and MaxRows bound the number of drawn cells.
	MaxColumns int
	MaxRows    int
	// Colors is the number of palette entries.
	Colors int
}

// DefaultOptions returns a 1000x400 pixel figure.
func DefaultOptions() Options {
	return Options{
		Width:         10 * vg.Inch,
		Height:        4 * vg.Inch,
		DPI:           100,
		Title:         "Spectrogram",
		ColorBarWidth: 1.2 * vg.Inch,
		MaxColumns:    1000,
		MaxRows:       256,
		Colors:        256,
	}
}

// PlotRenderer implements Renderer using gonum/plot and writes PNG.
type PlotRenderer struct {
	opts Options
}

// NewPlotRenderer creates a PlotRenderer. Zero fields of opts fall back
// to DefaultOptions.
func NewPlotRenderer(opts Options) *PlotRenderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.ColorBarWidth <= 0 || opts.ColorBarWidth >= opts.Width {
		opts.ColorBarWidth = def.ColorBarWidth
	}
	if opts.MaxColumns <= 0 {
		opts.MaxColumns = def.MaxColumns
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = def.MaxRows
	}
	if opts.Colors < 2 {
		opts.Colors = def.Colors
	}
	return &PlotRenderer{opts: opts}
}

// Render implements Renderer.Render.
func (r *PlotRenderer) Render(ctx context.Context, s *spectrogram.Spectrogram, w io.Writer) (err error) {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if s == nil {
		return ErrEmptySpectrogram
	}

	g, err := newGrid(s, r.opts.MaxColumns, r.opts.MaxRows)
	if err != nil {
		return err
	}

	// gonum/plot reports invalid ranges by panicking.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRender, p)
		}
	}()

	cm := moreland.ExtendedBlackBody()
	cm.SetMin(g.Min())
	cm.SetMax(g.Max())

	heat := r.newHeatMapPlot(g, cm.Palette(r.opts.Colors))
	bar := newColorBarPlot(cm, r.opts.Colors, heat)

	img := vgimg.NewWith(vgimg.UseWH(r.opts.Width, r.opts.Height), vgimg.UseDPI(r.opts.DPI))
	dc := draw.New(img)
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	heat.Draw(draw.Crop(dc, 0, -r.opts.ColorBarWidth, 0, 0))
	bar.Draw(draw.Crop(dc, r.opts.Width-r.opts.ColorBarWidth, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("%w: encode png: %v", ErrRender, err)
	}
	return nil
}

func (r *PlotRenderer) newHeatMapPlot(g *grid, pal palette.Palette) *plot.Plot {
	p := plot.New()
	p.Title.Text = r.opts.Title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Hz"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	h := plotter.NewHeatMap(g, pal)
	h.Min, h.Max = g.Min(), g.Max()
	colors := pal.Colors()
	h.Underflow = colors[0]
	h.Overflow = colors[len(colors)-1]
	p.Add(h)

	return p
}

// newColorBarPlot builds a vertical colour bar whose data area lines up
// with heat: it carries a blank title and an invisible copy of heat's x
// axis so both plots reserve the same space above and below.
func newColorBarPlot(cm palette.ColorMap, colors int, heat *plot.Plot) *plot.Plot {
	p := plot.New()
	p.Title.Text = " "
	p.Y.Tick.Marker = dbTicks{}
	p.Y.Padding = heat.Y.Padding
	p.X.Padding = 0

	p.X.Label.Text = heat.X.Label.Text
	p.X.Label.TextStyle.Color = color.Transparent
	p.X.Tick.Label.Color = color.Transparent
	p.X.Tick.LineStyle.Color = color.Transparent
	p.X.LineStyle.Color = color.Transparent

	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true, Colors: colors})
	return p
}

// dbTicks labels the colour bar like "+0 dB", "-20 dB".
type dbTicks struct{}

func (dbTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = fmt.Sprintf("%+2.0f dB", ticks[i].Value)
		}
	}
	return ticks
}

// Verify interface implementation at compile time.
var _ Renderer = (*PlotRenderer)(nil)
