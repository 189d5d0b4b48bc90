package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database that holds all shared pipeline state.
// It is the only collaborator shared across components; every multi-row
// state transition happens inside a single transaction here.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS candles (
				ticker      TEXT NOT NULL,
				ts          TEXT NOT NULL,
				interval    TEXT NOT NULL,
				open        REAL NOT NULL,
				high        REAL NOT NULL,
				low         REAL NOT NULL,
				close       REAL NOT NULL,
				volume      REAL NOT NULL,
				is_complete INTEGER NOT NULL DEFAULT 1,
				PRIMARY KEY (ticker, ts, interval)
			);

			CREATE TABLE IF NOT EXISTS quotes (
				id     INTEGER PRIMARY KEY AUTOINCREMENT,
				ticker TEXT NOT NULL,
				ts     TEXT NOT NULL,
				bid    REAL NOT NULL,
				ask    REAL NOT NULL,
				last   REAL NOT NULL,
				size   INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS option_chain (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				ticker        TEXT NOT NULL,
				snapshot_ts   TEXT NOT NULL,
				expiration    TEXT NOT NULL,
				strike        REAL NOT NULL,
				type          TEXT NOT NULL,
				bid           REAL NOT NULL,
				ask           REAL NOT NULL,
				iv            REAL,
				delta         REAL,
				gamma         REAL,
				open_interest INTEGER,
				volume        INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_chain_key
				ON option_chain (ticker, expiration, strike, type, snapshot_ts);

			CREATE TABLE IF NOT EXISTS predictions (
				id                TEXT PRIMARY KEY,
				ticker            TEXT NOT NULL,
				category          TEXT NOT NULL,
				direction         TEXT NOT NULL,
				strike            REAL NOT NULL,
				entry_price       REAL NOT NULL,
				confidence        REAL NOT NULL,
				entry_trigger     REAL NOT NULL,
				stop_loss         REAL NOT NULL,
				take_profit       REAL NOT NULL,
				risk_reward_ratio REAL NOT NULL,
				session           TEXT NOT NULL,
				engine            TEXT NOT NULL,
				reasoning         TEXT NOT NULL,
				status            TEXT NOT NULL,
				generated_at      TEXT NOT NULL,
				expires_at        TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_predictions_active
				ON predictions (status, ticker, direction, engine);

			CREATE TABLE IF NOT EXISTS outcomes (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				prediction_id TEXT NOT NULL UNIQUE REFERENCES predictions(id),
				actual_pnl    REAL NOT NULL,
				result        TEXT NOT NULL,
				closed_at     TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS weights (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				ticker       TEXT NOT NULL,
				genes        TEXT NOT NULL,
				win_rate     REAL NOT NULL,
				is_active    INTEGER NOT NULL DEFAULT 0,
				last_updated TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_weights_active ON weights (ticker, is_active);

			CREATE TABLE IF NOT EXISTS weights_deltas (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				weights_id INTEGER NOT NULL REFERENCES weights(id),
				old_genes  TEXT NOT NULL,
				new_genes  TEXT NOT NULL,
				reason     TEXT NOT NULL,
				at         TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS backtest_results (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				ticker        TEXT NOT NULL,
				strategy_name TEXT NOT NULL,
				time_range    TEXT NOT NULL,
				total_trades  INTEGER NOT NULL,
				win_rate      REAL NOT NULL,
				profit_factor REAL NOT NULL,
				max_drawdown  REAL NOT NULL,
				run_at        TEXT NOT NULL
			);

			INSERT INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}
