package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmarlen/aurora/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "aurora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePrediction(id string, direction types.OptionType, engine types.Engine) *types.Prediction {
	return &types.Prediction{
		ID:         id,
		Ticker:     "SPY",
		Category:   "0DTE",
		Direction:  direction,
		Strike:     452,
		EntryPrice: 450,
		Confidence: 68,
		Session:    "MORNING",
		Engine:     engine,
		Reasoning: types.Reasoning{
			Engine:  engine,
			Summary: "test",
			Scores:  map[string]float64{"tpo": 0.7},
		},
		Status:      types.StatusActive,
		Plan:        types.TradePlan{Entry: 1.00, Stop: 0.50, Target: 2.00, RiskReward: 2.0},
		GeneratedAt: time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestCandles_RoundTripAndUpsert(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 8, 20, 13, 30, 0, 0, time.UTC)
	candles := make([]types.Candle, 5)
	for i := range candles {
		candles[i] = types.Candle{
			Ticker: "SPY", Open: 450, High: 451, Low: 449, Close: 450.5,
			Volume: 1000, Timestamp: base.Add(time.Duration(i) * time.Minute),
			Interval: types.Interval1m,
		}
	}
	require.NoError(t, s.InsertCandles(candles))

	// re-inserting an overlapping tail must not duplicate rows
	candles[4].Close = 451.0
	require.NoError(t, s.InsertCandles(candles[2:]))

	got, err := s.RecentCandles("SPY", types.Interval1m, 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, got[0].Timestamp.Before(got[4].Timestamp), "chronological order")
	assert.Equal(t, 451.0, got[4].Close, "upsert keeps the newest values")

	latest, err := s.LatestCandle("SPY")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, got[4].Timestamp, latest.Timestamp)
}

func TestLatestCandle_Empty(t *testing.T) {
	s := openTestStore(t)
	latest, err := s.LatestCandle("SPY")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCandlesRange(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 8, 20, 13, 30, 0, 0, time.UTC)
	candles := make([]types.Candle, 10)
	for i := range candles {
		candles[i] = types.Candle{
			Ticker: "SPY", Open: 450, High: 451, Low: 449, Close: 450,
			Volume: 1000, Timestamp: base.Add(time.Duration(i) * time.Minute),
			Interval: types.Interval1m,
		}
	}
	require.NoError(t, s.InsertCandles(candles))

	got, err := s.CandlesRange("SPY", types.Interval1m, base.Add(2*time.Minute), base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestPredictions_DuplicateSuppressionKey(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.InsertPrediction(samplePrediction("p1", types.Call, types.EngineTPOMIT)))

	taken, err := s.ActiveExists("SPY", types.Call, types.EngineTPOMIT)
	require.NoError(t, err)
	assert.True(t, taken)

	// same side, different engine is a free slot
	taken, err = s.ActiveExists("SPY", types.Call, types.EngineORBMomentum)
	require.NoError(t, err)
	assert.False(t, taken)

	// opposite side, same engine is a free slot
	taken, err = s.ActiveExists("SPY", types.Put, types.EngineTPOMIT)
	require.NoError(t, err)
	assert.False(t, taken)

	// a CLOSED row releases the slot
	require.NoError(t, s.CloseWithOutcome("p1", types.ResultWin, 1.0, time.Now()))
	taken, err = s.ActiveExists("SPY", types.Call, types.EngineTPOMIT)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestPredictions_ReasoningRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := samplePrediction("p1", types.Put, types.EngineTPOMIT)
	p.Reasoning.TPO = &types.TPOReasoning{POC: 450, VAH: 452, VAL: 448, Bias: "SHORT"}
	require.NoError(t, s.InsertPrediction(p))

	active, err := s.GetActivePredictions("SPY")
	require.NoError(t, err)
	require.Len(t, active, 1)

	got := active[0]
	assert.Equal(t, types.Put, got.Direction)
	assert.Equal(t, 1.00, got.Plan.Entry)
	assert.Equal(t, 2.00, got.Plan.Target)
	require.NotNil(t, got.Reasoning.TPO)
	assert.Equal(t, 450.0, got.Reasoning.TPO.POC)
	assert.InDelta(t, 0.7, got.Reasoning.Scores["tpo"], 1e-9)
}

func TestCloseWithOutcome_Coupling(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPrediction(samplePrediction("p1", types.Call, types.EngineTPOMIT)))

	closedAt := time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC)
	require.NoError(t, s.CloseWithOutcome("p1", types.ResultWin, 2.0, closedAt))

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	assert.Empty(t, active)

	joined, err := s.OutcomesJoined("SPY", time.Time{})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, types.ResultWin, joined[0].Outcome.Result)
	assert.Equal(t, 2.0, joined[0].Outcome.ActualPnl)
	assert.Equal(t, types.StatusClosed, joined[0].Prediction.Status)

	// the outcome is one-to-one; a second close must fail on the unique key
	assert.Error(t, s.CloseWithOutcome("p1", types.ResultLoss, -1.0, closedAt))
}

func TestExpireBefore(t *testing.T) {
	s := openTestStore(t)

	stale := samplePrediction("old", types.Call, types.EngineTPOMIT)
	stale.GeneratedAt = time.Date(2025, 8, 19, 15, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPrediction(stale))

	fresh := samplePrediction("new", types.Put, types.EngineTPOMIT)
	fresh.GeneratedAt = time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPrediction(fresh))

	n, err := s.ExpireBefore(time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].ID)

	// expiries write no outcome rows
	joined, err := s.OutcomesJoined("", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, joined)
}

func TestWeights_UpsertAndDelta(t *testing.T) {
	s := openTestStore(t)

	// no active row yet
	ws, err := s.GetActiveWeights("SPY")
	require.NoError(t, err)
	assert.Nil(t, ws)

	first := types.DefaultGenes()
	require.NoError(t, s.UpsertActiveWeights("SPY", first, 0.55, "bootstrap"))

	// first upsert writes no delta
	var deltas int
	require.NoError(t, s.sql.QueryRow(`SELECT COUNT(1) FROM weights_deltas`).Scan(&deltas))
	assert.Equal(t, 0, deltas)

	second := first
	second.TPO = 0.45
	second.Normalize()
	require.NoError(t, s.UpsertActiveWeights("SPY", second, 0.30, "win rate 0.30 below floor 0.60"))

	ws, err = s.GetActiveWeights("SPY")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.InDelta(t, second.TPO, ws.Genes.TPO, 1e-9)
	assert.True(t, ws.IsActive)

	// exactly one active row, and the swap left an audit delta
	var activeRows int
	require.NoError(t, s.sql.QueryRow(`SELECT COUNT(1) FROM weights WHERE ticker = 'SPY' AND is_active = 1`).Scan(&activeRows))
	assert.Equal(t, 1, activeRows)
	require.NoError(t, s.sql.QueryRow(`SELECT COUNT(1) FROM weights_deltas`).Scan(&deltas))
	assert.Equal(t, 1, deltas)

	var reason string
	require.NoError(t, s.sql.QueryRow(`SELECT reason FROM weights_deltas`).Scan(&reason))
	assert.Contains(t, reason, "0.30")
}

func TestGetActivePredictions_CorruptReasoning(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPrediction(samplePrediction("p1", types.Call, types.EngineTPOMIT)))

	_, err := s.sql.Exec(`UPDATE predictions SET reasoning = '{{nope' WHERE id = 'p1'`)
	require.NoError(t, err)

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	require.Len(t, active, 1, "a corrupt blob must not drop the row")
	assert.Equal(t, types.Reasoning{}, active[0].Reasoning)
}

func TestGetActiveWeights_CorruptBlob(t *testing.T) {
	s := openTestStore(t)
	_, err := s.sql.Exec(`INSERT INTO weights (ticker, genes, win_rate, is_active, last_updated)
		VALUES ('SPY', 'not-json', 0.5, 1, '2025-08-20 10:00:00')`)
	require.NoError(t, err)

	ws, err := s.GetActiveWeights("SPY")
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestInsertQuoteAndChain(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.InsertQuote(types.Quote{
		Ticker: "SPY", Bid: 449.99, Ask: 450.01, Last: 450, Size: 100,
		Timestamp: time.Now(),
	}))

	iv, delta := 0.25, 0.52
	require.NoError(t, s.InsertOptionSnapshots([]types.OptionContract{
		{
			Ticker: "SPY", Expiration: time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
			Strike: 452, Type: types.Call, Bid: 1.10, Ask: 1.20,
			IV: &iv, Delta: &delta, SnapshotTs: time.Now(),
		},
		{
			Ticker: "SPY", Expiration: time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
			Strike: 448, Type: types.Put, Bid: 0.90, Ask: 1.00,
			SnapshotTs: time.Now(),
		},
	}))

	var rows int
	require.NoError(t, s.sql.QueryRow(`SELECT COUNT(1) FROM option_chain`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestInsertBacktestResult(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertBacktestResult(types.BacktestResult{
		Ticker: "SPY", StrategyName: "TPO_MIT", TimeRange: "2025-08-01/2025-08-20",
		TotalTrades: 12, WinRate: 0.58, ProfitFactor: 1.4, MaxDrawdown: 0.12,
		RunAt: time.Now(),
	}))

	var rows int
	require.NoError(t, s.sql.QueryRow(`SELECT COUNT(1) FROM backtest_results`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
