package render

import (
	"math"

	"github.com/maauso/spectroview/internal/spectrogram"
)

// grid is a spectrogram reduced for plotting. It implements plotter.GridXYZ
// with columns along time and rows along log-spaced frequency.
type grid struct {
	x   []float64   // column centers, seconds
	y   []float64   // row centers, Hz
	z   [][]float64 // [col][row], dB
	min float64
	max float64
}

func (g *grid) Dims() (c, r int)   { return len(g.x), len(g.y) }
func (g *grid) Z(c, r int) float64 { return g.z[c][r] }
func (g *grid) X(c int) float64    { return g.x[c] }
func (g *grid) Y(r int) float64    { return g.y[r] }
func (g *grid) Min() float64       { return g.min }
func (g *grid) Max() float64       { return g.max }

// span is a half-open index range.
type span struct{ lo, hi int }

// newGrid max-pools s into at most maxCols time columns and maxRows
// frequency rows. The DC bin is dropped so every row sits on a positive
// frequency, which the log axis requires.
func newGrid(s *spectrogram.Spectrogram, maxCols, maxRows int) (*grid, error) {
	frames, bins := s.Frames(), s.Bins()
	if frames == 0 || bins < 3 {
		return nil, ErrEmptySpectrogram
	}

	cols := timeSpans(frames, maxCols)
	rows, ys := freqSpans(s, maxRows)

	g := &grid{
		x:   make([]float64, len(cols)),
		y:   ys,
		z:   make([][]float64, len(cols)),
		min: -s.TopDB,
		max: 0,
	}

	colMax := make([]float64, bins)
	for c, cs := range cols {
		g.x[c] = (s.Time(cs.lo) + s.Time(cs.hi-1)) / 2

		copy(colMax, s.DB[cs.lo])
		for t := cs.lo + 1; t < cs.hi; t++ {
			for k, v := range s.DB[t] {
				if v > colMax[k] {
					colMax[k] = v
				}
			}
		}

		z := make([]float64, len(rows))
		for r, rs := range rows {
			v := math.Inf(-1)
			for k := rs.lo; k < rs.hi; k++ {
				v = math.Max(v, colMax[k])
			}
			z[r] = v
		}
		g.z[c] = z
	}

	return g, nil
}

// timeSpans splits n frames into at most limit contiguous groups.
func timeSpans(n, limit int) []span {
	if limit <= 0 || n <= limit {
		limit = n
	}
	out := make([]span, limit)
	for c := range out {
		out[c] = span{lo: c * n / limit, hi: (c + 1) * n / limit}
	}
	return out
}

// freqSpans groups bins 1..bins-1 into at most limit log-spaced rows and
// returns the groups with their geometric center frequencies.
func freqSpans(s *spectrogram.Spectrogram, limit int) ([]span, []float64) {
	bins := s.Bins()
	n := bins - 1
	if limit <= 0 || n <= limit {
		out := make([]span, n)
		ys := make([]float64, n)
		for r := range out {
			out[r] = span{lo: r + 1, hi: r + 2}
			ys[r] = s.Frequency(r + 1)
		}
		return out, ys
	}

	df := s.Frequency(1)
	lo, hi := df, s.Frequency(bins-1)
	ratio := math.Pow(hi/lo, 1/float64(limit))

	out := make([]span, limit)
	ys := make([]float64, limit)
	edge := lo
	for r := range out {
		next := edge * ratio
		ys[r] = math.Sqrt(edge * next)

		a := int(math.Ceil(edge/df - 1e-9))
		b := int(math.Ceil(next/df - 1e-9))
		if r == limit-1 {
			b = bins
		}
		a = clamp(a, 1, bins-1)
		b = clamp(b, a, bins)
		if b == a {
			k := clamp(int(math.Round(ys[r]/df)), 1, bins-1)
			a, b = k, k+1
		}
		out[r] = span{lo: a, hi: b}
		edge = next
	}
	return out, ys
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
