package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"stratopt/internal/domain"
)

var tradeHeader = []string{
	"round_trip", "symbol", "side", "entry_time", "exit_time",
	"entry", "exit", "size", "fees", "pnl", "open",
}

// WriteTradesCSV writes the trade log with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			strconv.Itoa(t.RoundTrip),
			t.Symbol,
			t.Direction.String(),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			formatF(t.EntryPrice),
			formatF(t.ExitPrice),
			formatF(t.Size),
			formatF(t.Fees),
			formatF(t.PnL),
			strconv.FormatBool(t.Open),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveTradesCSV writes the trade log to path.
func SaveTradesCSV(path string, trades []domain.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
