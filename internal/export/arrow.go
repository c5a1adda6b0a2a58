// Package export converts a run's text activity streams into Arrow IPC
// files for analysis tools.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/spikenet/internal/recorder"
)

// File names written by FromRunDir.
const (
	TotalsFile = "totals.arrow"
	RasterFile = "raster.arrow"
)

// rasterBatchSteps bounds the steps held in one raster record batch.
const rasterBatchSteps = 1000

var (
	totalsSchema = arrow.NewSchema([]arrow.Field{
		{Name: "step", Type: arrow.PrimitiveTypes.Int64},
		{Name: "time_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "spikes", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	rasterSchema = arrow.NewSchema([]arrow.Field{
		{Name: "step", Type: arrow.PrimitiveTypes.Int64},
		{Name: "slot", Type: arrow.PrimitiveTypes.Int32},
		{Name: "spiked", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)
)

// Paths lists the files written by FromRunDir.
type Paths struct {
	Totals string `json:"totals"`
	Raster string `json:"raster"`
}

// WriteTotalsArrow writes per-step totals as a single record batch.
func WriteTotalsArrow(path string, totals []int, dtMS float64) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, totalsSchema)
	defer b.Release()

	steps := b.Field(0).(*array.Int64Builder)
	times := b.Field(1).(*array.Float64Builder)
	spikes := b.Field(2).(*array.Int64Builder)
	steps.Reserve(len(totals))
	times.Reserve(len(totals))
	spikes.Reserve(len(totals))
	for i, v := range totals {
		steps.Append(int64(i))
		times.Append(float64(i) * dtMS)
		spikes.Append(int64(v))
	}

	rec := b.NewRecord()
	defer rec.Release()

	return writeFile(path, totalsSchema, mem, func(w *ipc.FileWriter) error {
		return w.Write(rec)
	})
}

// WriteRasterArrow writes the detail stream in long form, one row per
// (step, slot) flag, split into batches of rasterBatchSteps steps.
func WriteRasterArrow(path string, raster [][]bool) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, rasterSchema)
	defer b.Release()

	steps := b.Field(0).(*array.Int64Builder)
	slots := b.Field(1).(*array.Int32Builder)
	flags := b.Field(2).(*array.BooleanBuilder)

	return writeFile(path, rasterSchema, mem, func(w *ipc.FileWriter) error {
		for start := 0; start < len(raster); start += rasterBatchSteps {
			end := min(start+rasterBatchSteps, len(raster))
			for step := start; step < end; step++ {
				for slot, spiked := range raster[step] {
					steps.Append(int64(step))
					slots.Append(int32(slot))
					flags.Append(spiked)
				}
			}
			rec := b.NewRecord()
			err := w.Write(rec)
			rec.Release()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadTotalsArrow reads per-step totals written by WriteTotalsArrow.
func ReadTotalsArrow(path string) ([]int, error) {
	var totals []int
	err := readFile(path, totalsSchema, func(rec arrow.Record) {
		for _, v := range rec.Column(2).(*array.Int64).Int64Values() {
			totals = append(totals, int(v))
		}
	})
	return totals, err
}

// ReadRasterArrow reads a raster written by WriteRasterArrow.
func ReadRasterArrow(path string) ([][]bool, error) {
	var raster [][]bool
	err := readFile(path, rasterSchema, func(rec arrow.Record) {
		steps := rec.Column(0).(*array.Int64)
		flags := rec.Column(2).(*array.Boolean)
		for i := 0; i < int(rec.NumRows()); i++ {
			step := int(steps.Value(i))
			for len(raster) <= step {
				raster = append(raster, nil)
			}
			raster[step] = append(raster[step], flags.Value(i))
		}
	})
	return raster, err
}

// FromRunDir converts sum_spikes.txt and spikes.txt in dir into
// totals.arrow and raster.arrow next to them.
func FromRunDir(dir string, dtMS float64) (Paths, error) {
	totals, raster, err := recorder.ReadRunDir(dir)
	if err != nil {
		return Paths{}, err
	}

	paths := Paths{
		Totals: filepath.Join(dir, TotalsFile),
		Raster: filepath.Join(dir, RasterFile),
	}
	if err := WriteTotalsArrow(paths.Totals, totals, dtMS); err != nil {
		return Paths{}, err
	}
	if err := WriteRasterArrow(paths.Raster, raster); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeFile(path string, schema *arrow.Schema, mem memory.Allocator, write func(*ipc.FileWriter) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("file %s couldn't be opened: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer for %s: %w", path, err)
	}
	if err := write(w); err != nil {
		return errors.Join(fmt.Errorf("writing %s: %w", path, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", path, err)
	}
	return nil
}

func readFile(path string, schema *arrow.Schema, each func(arrow.Record)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s couldn't be opened: %w", path, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return fmt.Errorf("reading arrow file %s: %w", path, err)
	}
	defer r.Close()

	if !sameColumns(r.Schema(), schema) {
		return fmt.Errorf("%s: unexpected schema %s", path, r.Schema())
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return fmt.Errorf("reading record %d of %s: %w", i, path, err)
		}
		each(rec)
	}
	return nil
}

func sameColumns(got, want *arrow.Schema) bool {
	if got.NumFields() != want.NumFields() {
		return false
	}
	for i := 0; i < want.NumFields(); i++ {
		g, w := got.Field(i), want.Field(i)
		if g.Name != w.Name || g.Type.ID() != w.Type.ID() {
			return false
		}
	}
	return true
}
