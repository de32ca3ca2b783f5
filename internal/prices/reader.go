// Package prices reads minute-bar price files and writes boundary and
// labeled-price reports as CSV.
package prices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/lunaris/internal/contracts"
)

// TimestampLayout is the date+time layout of the source files ("2019.01.02 17:05")
const TimestampLayout = "2006.01.02 15:04"

// Columns is the required column set, also the positional order of header-less files
var Columns = []string{"date", "time", "open", "high", "low", "close", "volume"}

var (
	// ErrMalformed is returned for structurally broken files or rows
	ErrMalformed = errors.New("malformed price file")

	// ErrOutOfRange is returned when the file's span leaves the study range
	ErrOutOfRange = errors.New("price data outside study range")
)

// ReadCSVFile opens path and reads it with ReadCSV
func ReadCSVFile(path string, loc *time.Location) ([]contracts.PriceTick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, loc)
}

// ReadCSV parses date,time,open,high,low,close,volume rows. A header row is
// optional; without one exactly seven columns are required. Timestamps are
// read in loc and returned in UTC.
func ReadCSV(r io.Reader, loc *time.Location) ([]contracts.PriceTick, error) {
	if loc == nil {
		loc = time.UTC
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	index, hasHeader, err := columnIndex(first)
	if err != nil {
		return nil, err
	}

	var ticks []contracts.PriceTick
	line := 1
	if !hasHeader {
		tick, err := parseRow(first, index, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, tick)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		tick, err := parseRow(record, index, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, tick)
	}

	return ticks, nil
}

// columnIndex maps each required column to its position
func columnIndex(first []string) (map[string]int, bool, error) {
	index := make(map[string]int, len(Columns))
	for i, name := range first {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := index["date"]; ok {
		for _, col := range Columns {
			if _, ok := index[col]; !ok {
				return nil, false, fmt.Errorf("%w: header missing column %q", ErrMalformed, col)
			}
		}
		return index, true, nil
	}

	if len(first) != len(Columns) {
		return nil, false, fmt.Errorf("%w: no header and %d columns, want %s",
			ErrMalformed, len(first), strings.Join(Columns, ","))
	}
	for i, col := range Columns {
		index[col] = i
	}
	return index, false, nil
}

func parseRow(record []string, index map[string]int, loc *time.Location) (contracts.PriceTick, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, clock := field("date"), field("time")
	if date == "" || clock == "" {
		return contracts.PriceTick{}, fmt.Errorf("%w: missing date or time", ErrMalformed)
	}

	ts, err := time.ParseInLocation(TimestampLayout, date+" "+clock, loc)
	if err != nil {
		return contracts.PriceTick{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformed, date+" "+clock, err)
	}

	tick := contracts.PriceTick{Timestamp: ts.UTC()}
	targets := []struct {
		col string
		dst *decimal.Decimal
	}{
		{"open", &tick.Open},
		{"high", &tick.High},
		{"low", &tick.Low},
		{"close", &tick.Close},
	}
	for _, t := range targets {
		v, err := decimal.NewFromString(field(t.col))
		if err != nil {
			return contracts.PriceTick{}, fmt.Errorf("%w: %s %q is not numeric", ErrMalformed, t.col, field(t.col))
		}
		*t.dst = v
	}

	if vol := field("volume"); vol != "" {
		v, err := decimal.NewFromString(vol)
		if err != nil {
			return contracts.PriceTick{}, fmt.Errorf("%w: volume %q is not numeric", ErrMalformed, vol)
		}
		tick.Volume = v
	}

	return tick, nil
}

// Span returns the earliest and latest tick timestamps
func Span(ticks []contracts.PriceTick) (minTs, maxTs time.Time) {
	for i, t := range ticks {
		if i == 0 || t.Timestamp.Before(minTs) {
			minTs = t.Timestamp
		}
		if i == 0 || t.Timestamp.After(maxTs) {
			maxTs = t.Timestamp
		}
	}
	return minTs, maxTs
}

// CheckRange rejects files whose day-truncated span leaves [start, end]
func CheckRange(ticks []contracts.PriceTick, start, end time.Time) error {
	if len(ticks) == 0 {
		return fmt.Errorf("%w: no price rows", ErrMalformed)
	}

	minTs, maxTs := Span(ticks)
	minDay := minTs.UTC().Truncate(24 * time.Hour)
	maxDay := maxTs.UTC().Truncate(24 * time.Hour)

	if minDay.Before(start) || maxDay.After(end) {
		return fmt.Errorf("%w: prices span %s..%s, study range %s..%s", ErrOutOfRange,
			minDay.Format("2006-01-02"), maxDay.Format("2006-01-02"),
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}
