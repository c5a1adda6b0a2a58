// Package visualization renders a run's activity streams as plots and
// serves them over HTTP.
package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/nvandessel/spikenet/internal/recorder"
)

// File names written by FromRunDir.
const (
	TotalsPlotFile = "sum_spikes.png"
	RasterPlotFile = "raster.png"
)

// Default image size.
var (
	PlotWidth  = 10 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// ErrNoData is returned when there are no steps to plot.
var ErrNoData = errors.New("no steps to plot")

// Paths lists the files written by FromRunDir.
type Paths struct {
	Totals string `json:"totals"`
	Raster string `json:"raster"`
}

// TotalsPlot draws the population spike count per step against time.
func TotalsPlot(totals []int, dtMS float64) (*plot.Plot, error) {
	if len(totals) == 0 {
		return nil, ErrNoData
	}

	pts := make(plotter.XYs, len(totals))
	for i, v := range totals {
		pts[i].X = float64(i) * dtMS
		pts[i].Y = float64(v)
	}

	p := plot.New()
	p.Title.Text = "Population activity"
	p.X.Label.Text = "time (ms)"
	p.Y.Label.Text = "spikes per step"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("building totals line: %w", err)
	}
	line.LineStyle.Width = vg.Points(0.5)
	line.LineStyle.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(line)

	p.X.Min = 0
	p.X.Max = float64(len(totals)) * dtMS
	p.Y.Min = 0
	return p, nil
}

// RasterPlot draws one dot per spike flag of the observed units.
func RasterPlot(raster [][]bool, dtMS float64) (*plot.Plot, error) {
	if len(raster) == 0 {
		return nil, ErrNoData
	}

	var pts plotter.XYs
	slots := 0
	for step, row := range raster {
		slots = max(slots, len(row))
		for slot, spiked := range row {
			if spiked {
				pts = append(pts, plotter.XY{X: float64(step) * dtMS, Y: float64(slot)})
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Observed units"
	p.X.Label.Text = "time (ms)"
	p.Y.Label.Text = "unit"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("building raster: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.BoxGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(0.8)
	scatter.GlyphStyle.Color = color.Black
	p.Add(scatter)

	p.X.Min = 0
	p.X.Max = float64(len(raster)) * dtMS
	p.Y.Min = -0.5
	p.Y.Max = float64(slots) - 0.5
	return p, nil
}

// SavePNG writes p to path at the default size.
func SavePNG(p *plot.Plot, path string) error {
	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return fmt.Errorf("saving plot %s: %w", path, err)
	}
	return nil
}

// WritePNG encodes p at the default size to w.
func WritePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return fmt.Errorf("encoding plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// FromRunDir reads both streams in dir and writes sum_spikes.png and
// raster.png next to them. An empty detail stream yields no raster file.
func FromRunDir(dir string, dtMS float64) (Paths, error) {
	totals, raster, err := recorder.ReadRunDir(dir)
	if err != nil {
		return Paths{}, err
	}

	var paths Paths
	tp, err := TotalsPlot(totals, dtMS)
	if err != nil {
		return Paths{}, err
	}
	paths.Totals = filepath.Join(dir, TotalsPlotFile)
	if err := SavePNG(tp, paths.Totals); err != nil {
		return Paths{}, err
	}

	rp, err := RasterPlot(raster, dtMS)
	if errors.Is(err, ErrNoData) {
		return paths, nil
	}
	if err != nil {
		return Paths{}, err
	}
	paths.Raster = filepath.Join(dir, RasterPlotFile)
	if err := SavePNG(rp, paths.Raster); err != nil {
		return Paths{}, err
	}
	return paths, nil
}
