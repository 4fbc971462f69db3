package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stratopt/internal/domain"
)

// Compile-time interface check.
var _ BarSource = (*CSVSource)(nil)

// CSVSource reads bars from <Dir>/<SYMBOL>.csv. The header names the
// columns; "date" (or "timestamp") and "close" are required, "open", "high",
// "low", "volume" and "vwap" are optional. Dates are YYYY-MM-DD or RFC 3339.
// Empty or unparsable prices become NaN and are treated as gaps.
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a CSVSource reading from dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) Series(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error) {
	bars, err := s.Bars(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	return seriesFromBars(symbol, bars)
}

func (s *CSVSource) Bars(_ context.Context, symbol string, r DateRange) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	path := filepath.Join(s.Dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: no file %s: %w", symbol, path, domain.ErrInsufficientData)
		}
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := bars[:0]
	for _, b := range bars {
		if r.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ReadBarsCSV parses bars for symbol from CSV with a header row. Files
// without an open column get their opens from domain.FillOpens.
func ReadBarsCSV(rd io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := col["date"]
	if !ok {
		if dateCol, ok = col["timestamp"]; !ok {
			return nil, errors.New("missing date column")
		}
	}
	if _, ok := col["close"]; !ok {
		return nil, errors.New("missing close column")
	}

	field := func(rec []string, name string) float64 {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTime(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      field(rec, "open"),
			High:      field(rec, "high"),
			Low:       field(rec, "low"),
			Close:     field(rec, "close"),
			VWAP:      field(rec, "vwap"),
		}
		if v := field(rec, "volume"); !math.IsNaN(v) {
			b.Volume = int64(v)
		}
		bars = append(bars, b)
	}
	if _, ok := col["open"]; !ok {
		domain.FillOpens(bars)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable date %q", s)
	}
	return t.UTC(), nil
}
