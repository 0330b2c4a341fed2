package plays

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingColumn is returned when a source lacks a column the model needs.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptySource is returned when a source has no header row.
	ErrEmptySource = errors.New("empty play-by-play source")
)

// LoadCSV reads a cached play CSV written by SaveCSV (or by any tool that
// writes the same column names).
func LoadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open play cache: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, false)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to read play cache %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("rows", ds.Len()).
		Bool("has_pressure", ds.HasPressure).
		Msg("Loaded cached play data")

	return ds, nil
}

// SaveCSV writes the dataset to path, creating parent directories. The file
// is written to a temporary sibling first and renamed into place.
func SaveCSV(path string, ds Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".plays-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, ds); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move play cache into place: %w", err)
	}

	log.Info().Str("path", path).Int("rows", ds.Len()).Msg("Saved play data")
	return nil
}

// WriteCSV writes the dataset's columns and records to w.
func WriteCSV(w io.Writer, ds Dataset) error {
	cw := csv.NewWriter(w)
	cols := ds.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for i := range ds.Records {
		r := &ds.Records[i]
		for j, col := range cols {
			row[j] = formatField(r, col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses play rows from r. When passOnly is set and the source has a
// play_type column, rows whose play_type is not "pass" are skipped.
func ReadCSV(r io.Reader, passOnly bool) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, ErrEmptySource
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return Dataset{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	_, hasPressure := idx[ColPressure]
	playTypeIdx, hasPlayType := idx[ColPlayType]

	ds := Dataset{HasPressure: hasPressure}
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}

		if passOnly && hasPlayType && rec[playTypeIdx] != "pass" {
			continue
		}

		p := rowParser{rec: rec, idx: idx}
		record := newRecord()
		record.GameID = p.str(ColGameID)
		record.PlayID = p.str(ColPlayID)
		record.Posteam = p.str(ColPosteam)
		record.Defteam = p.str(ColDefteam)
		record.Qtr = p.num(ColQtr)
		record.Down = p.num(ColDown)
		record.YdsToGo = p.num(ColYdsToGo)
		record.YardLine100 = p.num(ColYardLine100)
		record.GameSecondsRemaining = p.num(ColGameSecondsRemaining)
		record.PosteamScore = p.num(ColPosteamScore)
		record.DefteamScore = p.num(ColDefteamScore)
		record.PassLocation = p.str(ColPassLocation)
		record.PassLength = p.str(ColPassLength)
		record.Shotgun = p.num(ColShotgun)
		record.NoHuddle = p.num(ColNoHuddle)
		record.QBHit = p.num(ColQBHit)
		if hasPressure {
			record.Pressure = p.num(ColPressure)
		}
		if p.err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, p.err)
		}

		ds.Records = append(ds.Records, record)
	}

	return ds, nil
}

type rowParser struct {
	rec []string
	idx map[string]int
	err error
}

func (p *rowParser) raw(col string) (string, bool) {
	i, ok := p.idx[col]
	if !ok || i >= len(p.rec) {
		return "", false
	}
	return strings.TrimSpace(p.rec[i]), true
}

func (p *rowParser) str(col string) string {
	v, _ := p.raw(col)
	if isMissing(v) {
		return ""
	}
	return v
}

func (p *rowParser) num(col string) float64 {
	v, ok := p.raw(col)
	if !ok || isMissing(v) {
		return math.NaN()
	}
	switch strings.ToLower(v) {
	case "true":
		return 1
	case "false":
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("column %s: invalid number %q", col, v)
		}
		return math.NaN()
	}
	return f
}

func isMissing(v string) bool {
	switch v {
	case "", "NA", "NaN", "nan", "None", "null":
		return true
	}
	return false
}

func formatField(r *Record, col string) string {
	switch col {
	case ColGameID:
		return r.GameID
	case ColPlayID:
		return r.PlayID
	case ColPosteam:
		return r.Posteam
	case ColDefteam:
		return r.Defteam
	case ColQtr:
		return formatNum(r.Qtr)
	case ColDown:
		return formatNum(r.Down)
	case ColYdsToGo:
		return formatNum(r.YdsToGo)
	case ColYardLine100:
		return formatNum(r.YardLine100)
	case ColGameSecondsRemaining:
		return formatNum(r.GameSecondsRemaining)
	case ColPosteamScore:
		return formatNum(r.PosteamScore)
	case ColDefteamScore:
		return formatNum(r.DefteamScore)
	case ColPassLocation:
		return r.PassLocation
	case ColPassLength:
		return r.PassLength
	case ColShotgun:
		return formatNum(r.Shotgun)
	case ColNoHuddle:
		return formatNum(r.NoHuddle)
	case ColQBHit:
		return formatNum(r.QBHit)
	case ColPressure:
		return formatNum(r.Pressure)
	}
	return ""
}

func formatNum(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
