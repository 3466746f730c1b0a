package catalogs

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Noofbiz/clusterz/geometry"
)

// Accepted header names for each logical column, checked in order.
var (
	raColumns     = []string{"ra", "ra_deg", "alpha"}
	decColumns    = []string{"dec", "dec_deg", "delta"}
	zColumns      = []string{"z", "redshift", "z_spec", "zspec"}
	weightColumns = []string{"weight", "w", "wt"}
)

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// globCSV expands pattern into the list of files to read. A catalog may be
// split across several files; they are concatenated in lexical order.
func globCSV(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}
	return paths, nil
}

// columnIndex maps normalized header names to column positions.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return idx
}

func findColumn(idx map[string]int, names []string) int {
	for _, name := range names {
		if i, ok := idx[name]; ok {
			return i
		}
	}
	return -1
}

// readRows streams every data row of every file matching pattern to fn. cols
// lists the logical columns wanted; fn receives their parsed values in the
// same order.
func readRows(pattern string, cols [][]string, fn func(vals []float64) error) error {
	paths, err := globCSV(pattern)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := readFile(path, cols, fn); err != nil {
			return err
		}
	}
	return nil
}

// readFile reports problems by file line, counting the header as line 1.
func readFile(path string, cols [][]string, fn func([]float64) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	idx := columnIndex(header)
	positions := make([]int, len(cols))
	for i, names := range cols {
		positions[i] = findColumn(idx, names)
		if positions[i] < 0 {
			return fmt.Errorf("required column %q not found in %s", names[0], path)
		}
	}

	vals := make([]float64, len(cols))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read line %d of %s: %w", line, path, err)
		}
		for i, pos := range positions {
			if pos >= len(record) {
				return fmt.Errorf("line %d of %s: missing column %q", line, path, cols[i][0])
			}
			v, err := parseFloat(record[pos])
			if err != nil {
				return fmt.Errorf("line %d of %s: failed to parse %s: %w", line, path, cols[i][0], err)
			}
			vals[i] = v
		}
		if err := fn(vals); err != nil {
			return fmt.Errorf("line %d of %s: %w", line, path, err)
		}
	}
	return nil
}

// LoadReferenceCSV reads ra, dec (degrees) and redshift columns from every
// CSV matching pattern. The result is validated before it is returned.
func LoadReferenceCSV(pattern string) (Reference, error) {
	var ref Reference
	err := readRows(pattern, [][]string{raColumns, decColumns, zColumns}, func(v []float64) error {
		ref.Points = append(ref.Points, geometry.FromRADec(v[0], v[1]))
		ref.Redshifts = append(ref.Redshifts, v[2])
		return nil
	})
	if err != nil {
		return Reference{}, err
	}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// LoadWeightedCSV reads ra, dec and weight columns from every CSV matching
// pattern.
func LoadWeightedCSV(name, pattern string) (Weighted, error) {
	w := Weighted{Name: name}
	err := readRows(pattern, [][]string{raColumns, decColumns, weightColumns}, func(v []float64) error {
		w.Points = append(w.Points, geometry.FromRADec(v[0], v[1]))
		w.Weights = append(w.Weights, v[2])
		return nil
	})
	if err != nil {
		return Weighted{}, err
	}
	if err := w.Validate(); err != nil {
		return Weighted{}, err
	}
	return w, nil
}

// LoadPointsCSV reads bare ra, dec positions, as found in random catalogs.
func LoadPointsCSV(pattern string) ([]geometry.Point, error) {
	var pts []geometry.Point
	err := readRows(pattern, [][]string{raColumns, decColumns}, func(v []float64) error {
		pts = append(pts, geometry.FromRADec(v[0], v[1]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pts, nil
}

// HasWeightColumn reports whether the first CSV matching pattern has one of the
// weight columns. The CLI uses it to decide whether randoms need resampled
// weights.
func HasWeightColumn(pattern string) (bool, error) {
	paths, err := globCSV(pattern)
	if err != nil {
		return false, err
	}
	file, err := os.Open(paths[0])
	if err != nil {
		return false, fmt.Errorf("failed to open CSV %s: %w", paths[0], err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return false, fmt.Errorf("failed to read header of %s: %w", paths[0], err)
	}
	return findColumn(columnIndex(header), weightColumns) >= 0, nil
}
