package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/scalper/market"
)

// SQLite mirrors the trade log into a queryable database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, time, epic, direction, size, currency, entry_level, exit_level,
		 move_points, tp_points, sl_points, pnl, balance_after, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time.UTC(), t.Epic, string(t.Direction), t.Size, t.Currency, t.Entry,
		nullable(t.Exit), nullable(t.MovePoints), t.TPPoints, t.SLPoints, t.PnL,
		t.BalanceAfter, t.Notes,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

const selectTrade = `
	SELECT trade_id, time, epic, direction, size, currency, entry_level, exit_level,
	       move_points, tp_points, sl_points, pnl, balance_after, notes
	FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		rec       TradeRecord
		direction string
		exit      sql.NullFloat64
		move      sql.NullFloat64
		ts        time.Time
	)
	err := s.Scan(
		&rec.ID, &ts, &rec.Epic, &direction, &rec.Size, &rec.Currency, &rec.Entry,
		&exit, &move, &rec.TPPoints, &rec.SLPoints, &rec.PnL, &rec.BalanceAfter, &rec.Notes,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	rec.Time = ts.UTC()
	rec.Direction = market.Direction(direction)
	if exit.Valid {
		rec.Exit = Float(exit.Float64)
	}
	if move.Valid {
		rec.MovePoints = Float(move.Float64)
	}
	return rec, nil
}

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
