package export

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestWriteTotalsArrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), TotalsFile)
	totals := []int{0, 3, 0, 12, 7}

	if err := WriteTotalsArrow(path, totals, 0.1); err != nil {
		t.Fatalf("WriteTotalsArrow() error = %v", err)
	}

	got, err := ReadTotalsArrow(path)
	if err != nil {
		t.Fatalf("ReadTotalsArrow() error = %v", err)
	}
	if !slices.Equal(got, totals) {
		t.Errorf("ReadTotalsArrow() = %v, want %v", got, totals)
	}
}

func TestWriteRasterArrow_SpansBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), RasterFile)
	raster := make([][]bool, rasterBatchSteps+3)
	for i := range raster {
		raster[i] = []bool{i%2 == 0, false, i%7 == 0}
	}

	if err := WriteRasterArrow(path, raster); err != nil {
		t.Fatalf("WriteRasterArrow() error = %v", err)
	}

	got, err := ReadRasterArrow(path)
	if err != nil {
		t.Fatalf("ReadRasterArrow() error = %v", err)
	}
	if len(got) != len(raster) {
		t.Fatalf("ReadRasterArrow() returned %d rows, want %d", len(got), len(raster))
	}
	for i := range raster {
		if !slices.Equal(got[i], raster[i]) {
			t.Fatalf("row %d = %v, want %v", i, got[i], raster[i])
		}
	}
}

func TestReadTotalsArrow_WrongSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), RasterFile)
	if err := WriteRasterArrow(path, [][]bool{{true}}); err != nil {
		t.Fatalf("WriteRasterArrow() error = %v", err)
	}
	if _, err := ReadTotalsArrow(path); err == nil {
		t.Error("ReadTotalsArrow() expected schema error")
	}
}

func TestReadTotalsArrow_NotArrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sum_spikes.txt")
	if err := os.WriteFile(path, []byte("1\n2\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := ReadTotalsArrow(path); err == nil {
		t.Error("ReadTotalsArrow() expected error for a text file")
	}
}

func TestFromRunDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sum_spikes.txt"), []byte("0\n2\n1\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	detail := strings.Repeat("0 1 \n", 2) + "1 1 \n"
	if err := os.WriteFile(filepath.Join(dir, "spikes.txt"), []byte(detail), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	paths, err := FromRunDir(dir, 0.1)
	if err != nil {
		t.Fatalf("FromRunDir() error = %v", err)
	}

	totals, err := ReadTotalsArrow(paths.Totals)
	if err != nil {
		t.Fatalf("ReadTotalsArrow() error = %v", err)
	}
	if want := []int{0, 2, 1}; !slices.Equal(totals, want) {
		t.Errorf("totals = %v, want %v", totals, want)
	}

	raster, err := ReadRasterArrow(paths.Raster)
	if err != nil {
		t.Fatalf("ReadRasterArrow() error = %v", err)
	}
	if len(raster) != 3 || !slices.Equal(raster[2], []bool{true, true}) {
		t.Errorf("raster = %v", raster)
	}
}

func TestFromRunDir_MissingStreams(t *testing.T) {
	if _, err := FromRunDir(t.TempDir(), 0.1); err == nil {
		t.Error("FromRunDir() expected error for an empty directory")
	}
}
