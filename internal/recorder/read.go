package recorder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/spikenet/internal/constants"
)

// ReadTotals parses an aggregate stream into per-step totals.
func ReadTotals(r io.Reader) ([]int, error) {
	var totals []int
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid spike total %q", line, text)
		}
		totals = append(totals, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s stream: %w", constants.StreamAggregate, err)
	}
	return totals, nil
}

// ReadRaster parses a detail stream into one row of flags per step.
func ReadRaster(r io.Reader) ([][]bool, error) {
	var raster [][]bool
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]bool, len(fields))
		for i, f := range fields {
			switch f {
			case "0":
			case "1":
				row[i] = true
			default:
				return nil, fmt.Errorf("line %d: invalid spike flag %q", line, f)
			}
		}
		raster = append(raster, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s stream: %w", constants.StreamDetail, err)
	}
	return raster, nil
}

// ReadRunDir reads both streams from a run's output directory.
func ReadRunDir(dir string) ([]int, [][]bool, error) {
	aggFile, err := os.Open(filepath.Join(dir, constants.StreamAggregate.FileName()))
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s stream: %w", constants.StreamAggregate, err)
	}
	defer aggFile.Close()

	totals, err := ReadTotals(aggFile)
	if err != nil {
		return nil, nil, err
	}

	detailFile, err := os.Open(filepath.Join(dir, constants.StreamDetail.FileName()))
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s stream: %w", constants.StreamDetail, err)
	}
	defer detailFile.Close()

	raster, err := ReadRaster(detailFile)
	if err != nil {
		return nil, nil, err
	}
	return totals, raster, nil
}
