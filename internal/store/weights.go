package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

// UpsertActiveWeights deactivates any current active row for the ticker,
// inserts the new genes as active, and writes a ParameterDelta citing the
// reason, all in one transaction.
func (s *Store) UpsertActiveWeights(ticker string, genes types.Genes, winRate float64, reason string) error {
	newBlob, err := json.Marshal(genes)
	if err != nil {
		return fmt.Errorf("upsert weights: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)

	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("upsert weights: %w", err)
	}

	var oldBlob string
	hadActive := true
	err = tx.QueryRow(`SELECT genes FROM weights WHERE ticker = ? AND is_active = 1`, ticker).Scan(&oldBlob)
	if errors.Is(err, sql.ErrNoRows) {
		hadActive = false
	} else if err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert weights: %w", err)
	}

	if _, err := tx.Exec(`UPDATE weights SET is_active = 0 WHERE ticker = ? AND is_active = 1`, ticker); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert weights: %w", err)
	}

	res, err := tx.Exec(`INSERT INTO weights (ticker, genes, win_rate, is_active, last_updated)
		VALUES (?,?,?,1,?)`, ticker, string(newBlob), winRate, now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert weights: %w", err)
	}

	if hadActive {
		newID, _ := res.LastInsertId()
		if _, err := tx.Exec(`INSERT INTO weights_deltas (weights_id, old_genes, new_genes, reason, at)
			VALUES (?,?,?,?,?)`, newID, oldBlob, string(newBlob), reason, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert weights: %w", err)
		}
	}
	return tx.Commit()
}

// GetActiveWeights returns the active weight set for a ticker, or nil when
// none exists. A row whose genes blob fails to decode is treated as absent
// and left in place for the next optimizer run to overwrite.
func (s *Store) GetActiveWeights(ticker string) (*types.WeightSet, error) {
	row := s.sql.QueryRow(`SELECT id, genes, win_rate, last_updated
		FROM weights WHERE ticker = ? AND is_active = 1`, ticker)

	var ws types.WeightSet
	var blob, updated string
	err := row.Scan(&ws.ID, &blob, &ws.WinRate, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active weights: %w", err)
	}

	if err := json.Unmarshal([]byte(blob), &ws.Genes); err != nil {
		log.Printf("[Store] corrupt genes blob for %s (id=%d): %v", ticker, ws.ID, err)
		return nil, nil
	}
	ws.Ticker = ticker
	ws.IsActive = true
	ws.LastUpdated, _ = time.Parse(tsLayout, updated)
	return &ws, nil
}

// InsertBacktestResult appends one replay aggregate row.
func (s *Store) InsertBacktestResult(r types.BacktestResult) error {
	_, err := s.sql.Exec(`INSERT INTO backtest_results
		(ticker, strategy_name, time_range, total_trades, win_rate, profit_factor, max_drawdown, run_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.Ticker, r.StrategyName, r.TimeRange, r.TotalTrades, r.WinRate,
		r.ProfitFactor, r.MaxDrawdown, r.RunAt.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("insert backtest result: %w", err)
	}
	return nil
}
