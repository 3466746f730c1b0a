// Package results persists and plots raw clustering-z pair counts.
package results

import (
	"bufio"
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Noofbiz/clusterz/clusterz"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// FormatVersion is bumped whenever File changes shape.
const FormatVersion = 1

// CSVHeader is the column order of the csv format.
var CSVHeader = []string{"redshift", "unknown_pairs", "random_pairs"}

// Format is an on-disk encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatGob
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatGob:
		return "gob"
	case FormatCBOR:
		return "cbor"
	}
	return "unknown"
}

// File is the gob/cbor payload. Columns are index-aligned with the
// reference catalog.
type File struct {
	Version   int       `cbor:"1,keyasint"`
	RunID     string    `cbor:"2,keyasint"`
	CreatedAt int64     `cbor:"3,keyasint"`
	MinSepMpc float64   `cbor:"4,keyasint"`
	MaxSepMpc float64   `cbor:"5,keyasint"`
	Redshift  []float64 `cbor:"6,keyasint"`
	Unknown   []float64 `cbor:"7,keyasint"`
	Random    []float64 `cbor:"8,keyasint"`
}

// FormatFor picks the encoding from path's extension, ignoring a trailing
// .zst. The bool reports whether the stream is zstd compressed.
func FormatFor(path string) (Format, bool, error) {
	name := strings.ToLower(path)
	compressed := strings.HasSuffix(name, ".zst")
	name = strings.TrimSuffix(name, ".zst")
	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, compressed, nil
	case ".gob":
		return FormatGob, compressed, nil
	case ".cbor":
		return FormatCBOR, compressed, nil
	}
	return 0, false, fmt.Errorf("unsupported result format for %s (want .csv, .gob or .cbor, optionally .zst)", path)
}

// Write stores res at path in the format its extension names. The write is
// atomic: data goes to a temp file in the same directory which is renamed on
// success.
func Write(path string, res *clusterz.Result) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}
	if res == nil {
		return fmt.Errorf("nil result")
	}
	format, compressed, err := FormatFor(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp result file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	bw := bufio.NewWriter(tmpFile)
	var w io.Writer = bw
	var zw *zstd.Encoder
	if compressed {
		zw, err = zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w = zw
	}

	if err := encode(w, format, res); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zstd writer: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush result file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync result file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp result file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp result to target: %w", err)
	}
	return nil
}

func encode(w io.Writer, format Format, res *clusterz.Result) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, res)
	case FormatGob:
		return gob.NewEncoder(w).Encode(toFile(res))
	case FormatCBOR:
		return cbor.NewEncoder(w).Encode(toFile(res))
	}
	return fmt.Errorf("unknown format %d", format)
}

func writeCSV(w io.Writer, res *clusterz.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	row := make([]string, len(CSVHeader))
	for _, p := range res.Pairs {
		row[0] = strconv.FormatFloat(p.Redshift, 'g', -1, 64)
		row[1] = strconv.FormatFloat(p.Unknown, 'g', -1, 64)
		row[2] = strconv.FormatFloat(p.Random, 'g', -1, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toFile(res *clusterz.Result) File {
	return File{
		Version:   FormatVersion,
		RunID:     res.RunID,
		CreatedAt: time.Now().Unix(),
		MinSepMpc: res.Window.MinMpc,
		MaxSepMpc: res.Window.MaxMpc,
		Redshift:  res.Redshifts(),
		Unknown:   res.UnknownPairs(),
		Random:    res.RandomPairs(),
	}
}

// Read loads a result written by Write. Only the pair columns, run id and
// window survive a round trip; diagnostics and warnings are not stored. The
// csv format carries neither run id nor window.
func Read(path string) (*clusterz.Result, error) {
	format, compressed, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result file %s: %w", path, err)
	}
	defer fh.Close()

	var r io.Reader = bufio.NewReader(fh)
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if format == FormatCSV {
		return readCSV(r, path)
	}

	var f File
	switch format {
	case FormatGob:
		err = gob.NewDecoder(r).Decode(&f)
	case FormatCBOR:
		err = cbor.NewDecoder(r).Decode(&f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("result version mismatch: file=%d expected=%d", f.Version, FormatVersion)
	}
	if len(f.Unknown) != len(f.Redshift) || len(f.Random) != len(f.Redshift) {
		return nil, fmt.Errorf("result column length mismatch: redshift=%d unknown=%d random=%d", len(f.Redshift), len(f.Unknown), len(f.Random))
	}
	return fromFile(f), nil
}

func fromFile(f File) *clusterz.Result {
	res := &clusterz.Result{
		RunID:  f.RunID,
		Window: clusterz.SeparationWindow{MinMpc: f.MinSepMpc, MaxMpc: f.MaxSepMpc},
		Pairs:  make([]clusterz.PairCount, len(f.Redshift)),
	}
	for i := range f.Redshift {
		res.Pairs[i] = clusterz.PairCount{Redshift: f.Redshift[i], Unknown: f.Unknown[i], Random: f.Random[i]}
	}
	return res
}

func readCSV(r io.Reader, path string) (*clusterz.Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, h := range CSVHeader {
		if strings.TrimSpace(header[i]) != h {
			return nil, fmt.Errorf("%s: column %d is %q, want %q", path, i, header[i], h)
		}
	}

	res := &clusterz.Result{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var vals [3]float64
		for j, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, line, err)
			}
			vals[j] = v
		}
		res.Pairs = append(res.Pairs, clusterz.PairCount{Redshift: vals[0], Unknown: vals[1], Random: vals[2]})
	}
	return res, nil
}
