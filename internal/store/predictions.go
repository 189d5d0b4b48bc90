package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

// InsertPrediction persists a new prediction row.
func (s *Store) InsertPrediction(p *types.Prediction) error {
	reasoning, err := json.Marshal(p.Reasoning)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	var expires interface{}
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.UTC().Format(tsLayout)
	}
	_, err = s.sql.Exec(`INSERT INTO predictions
		(id, ticker, category, direction, strike, entry_price, confidence,
		 entry_trigger, stop_loss, take_profit, risk_reward_ratio,
		 session, engine, reasoning, status, generated_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Ticker, p.Category, string(p.Direction), p.Strike, p.EntryPrice,
		p.Confidence, p.Plan.Entry, p.Plan.Stop, p.Plan.Target, p.Plan.RiskReward,
		p.Session, string(p.Engine), string(reasoning), string(p.Status),
		p.GeneratedAt.UTC().Format(tsLayout), expires)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

const predictionColumns = `id, ticker, category, direction, strike, entry_price,
	confidence, entry_trigger, stop_loss, take_profit, risk_reward_ratio,
	session, engine, reasoning, status, generated_at, expires_at`

func scanPrediction(row interface{ Scan(...interface{}) error }) (*types.Prediction, error) {
	var p types.Prediction
	var direction, engine, status, reasoning, generatedAt string
	var expiresAt sql.NullString
	err := row.Scan(&p.ID, &p.Ticker, &p.Category, &direction, &p.Strike,
		&p.EntryPrice, &p.Confidence, &p.Plan.Entry, &p.Plan.Stop, &p.Plan.Target,
		&p.Plan.RiskReward, &p.Session, &engine, &reasoning, &status,
		&generatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	p.Direction = types.OptionType(direction)
	p.Engine = types.Engine(engine)
	p.Status = types.PredictionStatus(status)
	if err := json.Unmarshal([]byte(reasoning), &p.Reasoning); err != nil {
		log.Printf("[Store] corrupt reasoning blob for prediction %s: %v", p.ID, err)
		p.Reasoning = types.Reasoning{}
	}
	p.GeneratedAt, _ = time.Parse(tsLayout, generatedAt)
	if expiresAt.Valid {
		if t, err := time.Parse(tsLayout, expiresAt.String); err == nil {
			p.ExpiresAt = &t
		}
	}
	return &p, nil
}

// GetActivePredictions returns all ACTIVE predictions, optionally filtered
// by ticker (empty string means all tickers).
func (s *Store) GetActivePredictions(ticker string) ([]*types.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE status = 'ACTIVE'`
	args := []interface{}{}
	if ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY generated_at ASC`

	rows, err := s.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("active predictions: %w", err)
	}
	defer rows.Close()

	var out []*types.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("active predictions: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// GetRecentPredictions returns the newest n predictions of any status.
func (s *Store) GetRecentPredictions(ticker string, n int) ([]*types.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions`
	args := []interface{}{}
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	var out []*types.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("recent predictions: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ActiveExists reports whether an ACTIVE prediction already holds the
// (ticker, direction, engine) slot. The scheduler uses it for duplicate
// suppression.
func (s *Store) ActiveExists(ticker string, direction types.OptionType, engine types.Engine) (bool, error) {
	var n int
	err := s.sql.QueryRow(`SELECT COUNT(1) FROM predictions
		WHERE status = 'ACTIVE' AND ticker = ? AND direction = ? AND engine = ?`,
		ticker, string(direction), string(engine)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("active exists: %w", err)
	}
	return n > 0, nil
}

// UpdatePredictionStatus sets a prediction's status.
func (s *Store) UpdatePredictionStatus(id string, status types.PredictionStatus) error {
	_, err := s.sql.Exec(`UPDATE predictions SET status = ? WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// CloseWithOutcome writes the outcome row and flips the prediction to CLOSED
// in one transaction, so the outcome-status coupling can never tear.
func (s *Store) CloseWithOutcome(predictionID string, result types.OutcomeResult, pnl float64, closedAt time.Time) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("close prediction: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO outcomes (prediction_id, actual_pnl, result, closed_at)
		VALUES (?,?,?,?)`,
		predictionID, pnl, string(result), closedAt.UTC().Format(tsLayout)); err != nil {
		tx.Rollback()
		return fmt.Errorf("close prediction: %w", err)
	}
	if _, err := tx.Exec(`UPDATE predictions SET status = 'CLOSED' WHERE id = ? AND status = 'ACTIVE'`,
		predictionID); err != nil {
		tx.Rollback()
		return fmt.Errorf("close prediction: %w", err)
	}
	return tx.Commit()
}

// ExpireBefore marks ACTIVE predictions generated before the given local day
// as EXPIRED. No outcome row is written for expiries.
func (s *Store) ExpireBefore(day time.Time) (int64, error) {
	res, err := s.sql.Exec(`UPDATE predictions SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND generated_at < ?`,
		day.UTC().Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("expire stale: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// JoinedOutcome pairs a graded prediction with its outcome row.
type JoinedOutcome struct {
	Prediction types.Prediction
	Outcome    types.Outcome
}

// OutcomesJoined returns graded predictions joined to their outcomes,
// optionally filtered by ticker and a lower time bound on closed_at.
func (s *Store) OutcomesJoined(ticker string, since time.Time) ([]JoinedOutcome, error) {
	query := `SELECT p.id, p.ticker, p.direction, p.engine, p.confidence,
			p.entry_trigger, p.stop_loss, p.take_profit, p.generated_at,
			o.id, o.actual_pnl, o.result, o.closed_at
		FROM outcomes o JOIN predictions p ON p.id = o.prediction_id WHERE 1=1`
	args := []interface{}{}
	if ticker != "" {
		query += ` AND p.ticker = ?`
		args = append(args, ticker)
	}
	if !since.IsZero() {
		query += ` AND o.closed_at >= ?`
		args = append(args, since.UTC().Format(tsLayout))
	}
	query += ` ORDER BY o.closed_at ASC`

	rows, err := s.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("outcomes joined: %w", err)
	}
	defer rows.Close()

	var out []JoinedOutcome
	for rows.Next() {
		var j JoinedOutcome
		var direction, engine, result, generatedAt, closedAt string
		if err := rows.Scan(&j.Prediction.ID, &j.Prediction.Ticker, &direction,
			&engine, &j.Prediction.Confidence, &j.Prediction.Plan.Entry,
			&j.Prediction.Plan.Stop, &j.Prediction.Plan.Target, &generatedAt,
			&j.Outcome.ID, &j.Outcome.ActualPnl, &result, &closedAt); err != nil {
			return nil, fmt.Errorf("outcomes joined: %w", err)
		}
		j.Prediction.Direction = types.OptionType(direction)
		j.Prediction.Engine = types.Engine(engine)
		j.Prediction.Status = types.StatusClosed
		j.Prediction.GeneratedAt, _ = time.Parse(tsLayout, generatedAt)
		j.Outcome.PredictionID = j.Prediction.ID
		j.Outcome.Result = types.OutcomeResult(result)
		j.Outcome.ClosedAt, _ = time.Parse(tsLayout, closedAt)
		out = append(out, j)
	}
	return out, nil
}
