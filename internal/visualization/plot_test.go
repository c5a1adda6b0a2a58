package visualization

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeRunDir writes a small pair of activity streams into a temp dir.
func writeRunDir(t *testing.T, aggregate, detail string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sum_spikes.txt"), []byte(aggregate), 0600); err != nil {
		t.Fatalf("write aggregate: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spikes.txt"), []byte(detail), 0600); err != nil {
		t.Fatalf("write detail: %v", err)
	}
	return dir
}

func TestTotalsPlot(t *testing.T) {
	p, err := TotalsPlot([]int{0, 4, 9, 2}, 0.1)
	if err != nil {
		t.Fatalf("TotalsPlot() error = %v", err)
	}
	if p.X.Max != 0.4 {
		t.Errorf("X.Max = %v, want 0.4", p.X.Max)
	}
	if p.Title.Text == "" {
		t.Error("expected a title")
	}
}

func TestTotalsPlot_Empty(t *testing.T) {
	if _, err := TotalsPlot(nil, 0.1); !errors.Is(err, ErrNoData) {
		t.Errorf("TotalsPlot(nil) error = %v, want ErrNoData", err)
	}
}

func TestRasterPlot(t *testing.T) {
	raster := [][]bool{{false, true, false}, {true, false, false}}
	p, err := RasterPlot(raster, 0.1)
	if err != nil {
		t.Fatalf("RasterPlot() error = %v", err)
	}
	if p.Y.Max != 2.5 {
		t.Errorf("Y.Max = %v, want 2.5", p.Y.Max)
	}
}

func TestRasterPlot_NoSpikes(t *testing.T) {
	if _, err := RasterPlot([][]bool{{false, false}}, 0.1); err != nil {
		t.Errorf("RasterPlot() error = %v", err)
	}
}

func TestWritePNG(t *testing.T) {
	p, err := TotalsPlot([]int{1, 2, 3}, 1)
	if err != nil {
		t.Fatalf("TotalsPlot() error = %v", err)
	}
	var buf bytes.Buffer
	if err := WritePNG(p, &buf); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func TestFromRunDir(t *testing.T) {
	dir := writeRunDir(t, "0\n2\n1\n", "0 1 \n1 1 \n0 0 \n")

	paths, err := FromRunDir(dir, 0.1)
	if err != nil {
		t.Fatalf("FromRunDir() error = %v", err)
	}
	for _, path := range []string{paths.Totals, paths.Raster} {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		_, err = png.Decode(f)
		f.Close()
		if err != nil {
			t.Errorf("%s is not a PNG: %v", path, err)
		}
	}
}

func TestFromRunDir_NoObservedUnits(t *testing.T) {
	dir := writeRunDir(t, "0\n0\n", "")

	paths, err := FromRunDir(dir, 0.1)
	if err != nil {
		t.Fatalf("FromRunDir() error = %v", err)
	}
	if paths.Raster != "" {
		t.Errorf("Raster = %q, want empty", paths.Raster)
	}
	if _, err := os.Stat(filepath.Join(dir, RasterPlotFile)); !os.IsNotExist(err) {
		t.Error("raster plot should not be written")
	}
}

func TestFromRunDir_EmptyRun(t *testing.T) {
	dir := writeRunDir(t, "", "")
	if _, err := FromRunDir(dir, 0.1); !errors.Is(err, ErrNoData) {
		t.Errorf("FromRunDir() error = %v, want ErrNoData", err)
	}
}
