package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

const tsLayout = "2006-01-02T15:04:05Z07:00"

// InsertCandles upserts a batch of candles keyed on (ticker, ts, interval).
func (s *Store) InsertCandles(candles []types.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("insert candles: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO candles
		(ticker, ts, interval, open, high, low, close, volume, is_complete)
		VALUES (?,?,?,?,?,?,?,?,1)
		ON CONFLICT (ticker, ts, interval) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert candles: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Ticker, c.Timestamp.UTC().Format(tsLayout), c.Interval,
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	return tx.Commit()
}

// RecentCandles returns the newest n candles for (ticker, interval), oldest
// first.
func (s *Store) RecentCandles(ticker, interval string, n int) ([]types.Candle, error) {
	rows, err := s.sql.Query(`SELECT ts, open, high, low, close, volume
		FROM candles WHERE ticker = ? AND interval = ?
		ORDER BY ts DESC LIMIT ?`, ticker, interval, n)
	if err != nil {
		return nil, fmt.Errorf("recent candles: %w", err)
	}
	defer rows.Close()

	out, err := scanCandles(rows, ticker, interval)
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CandlesRange returns candles in [start, end], oldest first.
func (s *Store) CandlesRange(ticker, interval string, start, end time.Time) ([]types.Candle, error) {
	rows, err := s.sql.Query(`SELECT ts, open, high, low, close, volume
		FROM candles WHERE ticker = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`,
		ticker, interval, start.UTC().Format(tsLayout), end.UTC().Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("candles range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows, ticker, interval)
}

// LatestCandle returns the most recent candle for a ticker at any interval,
// or nil when the store holds none.
func (s *Store) LatestCandle(ticker string) (*types.Candle, error) {
	row := s.sql.QueryRow(`SELECT ts, interval, open, high, low, close, volume
		FROM candles WHERE ticker = ? ORDER BY ts DESC LIMIT 1`, ticker)
	var ts string
	c := types.Candle{Ticker: ticker}
	err := row.Scan(&ts, &c.Interval, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest candle: %w", err)
	}
	c.Timestamp, _ = time.Parse(tsLayout, ts)
	return &c, nil
}

type candleRows interface {
	Next() bool
	Scan(dest ...interface{}) error
}

func scanCandles(rows candleRows, ticker, interval string) ([]types.Candle, error) {
	var out []types.Candle
	for rows.Next() {
		var ts string
		c := types.Candle{Ticker: ticker, Interval: interval}
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp, _ = time.Parse(tsLayout, ts)
		out = append(out, c)
	}
	return out, nil
}

// InsertQuote appends one quote row.
func (s *Store) InsertQuote(q types.Quote) error {
	_, err := s.sql.Exec(`INSERT INTO quotes (ticker, ts, bid, ask, last, size)
		VALUES (?,?,?,?,?,?)`,
		q.Ticker, q.Timestamp.UTC().Format(tsLayout), q.Bid, q.Ask, q.Last, q.Size)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// InsertOptionSnapshots appends a batch of chain rows.
func (s *Store) InsertOptionSnapshots(contracts []types.OptionContract) error {
	if len(contracts) == 0 {
		return nil
	}
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("insert options: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO option_chain
		(ticker, snapshot_ts, expiration, strike, type, bid, ask, iv, delta, gamma, open_interest, volume)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert options: %w", err)
	}
	defer stmt.Close()

	for _, c := range contracts {
		if _, err := stmt.Exec(c.Ticker, c.SnapshotTs.UTC().Format(tsLayout),
			c.Expiration.Format("2006-01-02"), c.Strike, string(c.Type),
			c.Bid, c.Ask, c.IV, c.Delta, c.Gamma, c.OpenInterest, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert options: %w", err)
		}
	}
	return tx.Commit()
}
