// Package recorder writes the two activity streams of a run and reads them
// back.
//
// The aggregate stream holds one line per step with the population spike
// total. The detail stream holds one "0 " or "1 " token per observed unit per
// step, with a newline after every row of observed units.
package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/spikenet/internal/constants"
)

// Recorder buffers both streams and writes them to their destinations.
// It is not safe for concurrent use; the network drives it from one goroutine.
type Recorder struct {
	aggDst    io.Writer
	detailDst io.Writer
	agg       *bufio.Writer
	detail    *bufio.Writer

	rowWidth int
	inRow    int

	aggPath    string
	detailPath string
	closers    []io.Closer
}

// New creates a recorder over arbitrary writers. rowWidth is the number of
// flags per detail row; zero disables row breaks.
func New(aggregate, detail io.Writer, rowWidth int) *Recorder {
	return &Recorder{
		aggDst:    aggregate,
		detailDst: detail,
		agg:       bufio.NewWriter(aggregate),
		detail:    bufio.NewWriter(detail),
		rowWidth:  rowWidth,
	}
}

// Open creates (or truncates) both stream files inside dir.
func Open(dir string, rowWidth int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	aggPath := filepath.Join(dir, constants.StreamAggregate.FileName())
	detailPath := filepath.Join(dir, constants.StreamDetail.FileName())

	aggFile, err := os.Create(aggPath)
	if err != nil {
		return nil, fmt.Errorf("file %s couldn't be opened: %w", aggPath, err)
	}
	detailFile, err := os.Create(detailPath)
	if err != nil {
		aggFile.Close()
		return nil, fmt.Errorf("file %s couldn't be opened: %w", detailPath, err)
	}

	r := New(aggFile, detailFile, rowWidth)
	r.aggPath = aggPath
	r.detailPath = detailPath
	r.closers = []io.Closer{aggFile, detailFile}
	return r, nil
}

// RecordStepTotal appends one step's population spike total.
func (r *Recorder) RecordStepTotal(count int) error {
	var buf [24]byte
	line := strconv.AppendInt(buf[:0], int64(count), 10)
	line = append(line, '\n')
	if _, err := r.agg.Write(line); err != nil {
		return fmt.Errorf("writing %s stream: %w", constants.StreamAggregate, err)
	}
	return nil
}

// RecordUnitFlag appends one observed unit's spike flag, ending the row after
// every rowWidth flags.
func (r *Recorder) RecordUnitFlag(spiked bool) error {
	token := "0 "
	if spiked {
		token = "1 "
	}
	if _, err := r.detail.WriteString(token); err != nil {
		return fmt.Errorf("writing %s stream: %w", constants.StreamDetail, err)
	}

	r.inRow++
	if r.rowWidth > 0 && r.inRow >= r.rowWidth {
		r.inRow = 0
		if err := r.detail.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing %s stream: %w", constants.StreamDetail, err)
		}
	}
	return nil
}

// truncater is implemented by *os.File.
type truncater interface {
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// resetter is implemented by *bytes.Buffer and *strings.Builder.
type resetter interface {
	Reset()
}

// Truncate discards everything written so far, buffered or not, and starts
// both streams over.
func (r *Recorder) Truncate() error {
	r.agg.Reset(r.aggDst)
	r.detail.Reset(r.detailDst)
	r.inRow = 0

	for _, dst := range []io.Writer{r.aggDst, r.detailDst} {
		switch w := dst.(type) {
		case truncater:
			if err := w.Truncate(0); err != nil {
				return fmt.Errorf("truncating stream: %w", err)
			}
			if _, err := w.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewinding stream: %w", err)
			}
		case resetter:
			w.Reset()
		}
	}
	return nil
}

// Flush writes buffered data to the destinations.
func (r *Recorder) Flush() error {
	if err := r.agg.Flush(); err != nil {
		return fmt.Errorf("flushing %s stream: %w", constants.StreamAggregate, err)
	}
	if err := r.detail.Flush(); err != nil {
		return fmt.Errorf("flushing %s stream: %w", constants.StreamDetail, err)
	}
	return nil
}

// Close flushes and closes any files opened by Open. It is safe to call twice.
func (r *Recorder) Close() error {
	err := r.Flush()
	for _, c := range r.closers {
		err = errors.Join(err, c.Close())
	}
	r.closers = nil
	return err
}

// AggregatePath returns the aggregate file path, or "" for writer-backed recorders.
func (r *Recorder) AggregatePath() string { return r.aggPath }

// DetailPath returns the detail file path, or "" for writer-backed recorders.
func (r *Recorder) DetailPath() string { return r.detailPath }
