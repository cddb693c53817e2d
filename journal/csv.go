package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/scalper/market"
)

var csvHeader = []string{
	"timestamp", "epic", "direction", "size", "currency",
	"entry_level", "exit_level", "move_points", "tp_points", "sl_points",
	"pnl_eur", "balance_after", "notes",
}

// CSVJournal appends trades to a CSV file, writing the header only when
// the file is new or empty.
type CSVJournal struct {
	file *os.File
	w    *csv.Writer
}

func NewCSV(path string) (*CSVJournal, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}

	w := csv.NewWriter(fh)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			fh.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			fh.Close()
			return nil, err
		}
	}
	return &CSVJournal{file: fh, w: w}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.w.Write([]string{
		t.Time.UTC().Format(time.RFC3339),
		t.Epic,
		string(t.Direction),
		f(t.Size),
		t.Currency,
		f(t.Entry),
		optional(t.Exit),
		optional(t.MovePoints),
		f(t.TPPoints),
		f(t.SLPoints),
		f(t.PnL),
		f(t.BalanceAfter),
		t.Notes,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.file.Sync()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

// ReadCSV loads every trade from a ledger CSV. Records read back from CSV
// carry no ID.
func ReadCSV(path string) ([]TradeRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = len(csvHeader)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var out []TradeRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		out = append(out, rec)
	}
}

func parseRow(row []string) (TradeRecord, error) {
	var (
		rec TradeRecord
		err error
	)
	if rec.Time, err = time.Parse(time.RFC3339, row[0]); err != nil {
		return rec, err
	}
	rec.Epic = row[1]
	rec.Direction = market.Direction(row[2])
	rec.Currency = row[4]
	rec.Notes = row[12]

	nums := []struct {
		dst *float64
		s   string
	}{
		{&rec.Size, row[3]}, {&rec.Entry, row[5]}, {&rec.TPPoints, row[8]},
		{&rec.SLPoints, row[9]}, {&rec.PnL, row[10]}, {&rec.BalanceAfter, row[11]},
	}
	for _, n := range nums {
		if *n.dst, err = strconv.ParseFloat(n.s, 64); err != nil {
			return rec, err
		}
	}
	if rec.Exit, err = parseOptional(row[6]); err != nil {
		return rec, err
	}
	if rec.MovePoints, err = parseOptional(row[7]); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
