package grader

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/internal/store"
	"github.com/tmarlen/aurora/pkg/types"
)

type fakeRetrainer struct {
	mu    sync.Mutex
	calls map[string]float64
}

func (f *fakeRetrainer) MaybeEvolve(ticker string, rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]float64)
	}
	f.calls[ticker] = rate
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "aurora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func activePrediction(id string, direction types.OptionType, entryStock float64) *types.Prediction {
	return &types.Prediction{
		ID:         id,
		Ticker:     "SPY",
		Category:   "0DTE",
		Direction:  direction,
		Strike:     452,
		EntryPrice: entryStock,
		Confidence: 68,
		Session:    "MORNING",
		Engine:     types.EngineTPOMIT,
		Reasoning:  types.Reasoning{Engine: types.EngineTPOMIT, Summary: "test"},
		Status:     types.StatusActive,
		Plan:       types.TradePlan{Entry: 1.00, Stop: 0.50, Target: 2.00, RiskReward: 2.0},
		GeneratedAt: time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func insertClose(t *testing.T, s *store.Store, close float64) {
	t.Helper()
	require.NoError(t, s.InsertCandles([]types.Candle{{
		Ticker: "SPY", Open: close, High: close, Low: close, Close: close,
		Volume: 1000, Timestamp: time.Date(2025, 8, 20, 14, 0, 0, 0, time.UTC),
		Interval: types.Interval1m,
	}}))
}

func TestGradeOpen_CallWin(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPrediction(activePrediction("p1", types.Call, 450)))
	insertClose(t, s, 454)

	retrainer := &fakeRetrainer{}
	g := NewGrader(s, risk.NewProjector(), retrainer)
	g.GradeOpen()

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	assert.Empty(t, active)

	joined, err := s.OutcomesJoined("SPY", time.Time{})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	// projected premium 1 + 4·0.5 = 3.00, over the 2.00 target
	assert.Equal(t, types.ResultWin, joined[0].Outcome.Result)
	assert.InDelta(t, 2.00, joined[0].Outcome.ActualPnl, 1e-9)

	assert.InDelta(t, 1.0, retrainer.calls["SPY"], 1e-9)
}

func TestGradeOpen_StopLoss(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPrediction(activePrediction("p1", types.Call, 450)))
	insertClose(t, s, 448) // premium 1 - 2·0.5 = 0.01 floor, under the stop

	g := NewGrader(s, risk.NewProjector(), nil)
	g.GradeOpen()

	joined, err := s.OutcomesJoined("SPY", time.Time{})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, types.ResultLoss, joined[0].Outcome.Result)
	assert.Negative(t, joined[0].Outcome.ActualPnl)
}

func TestGradeOpen_SkipsWithoutCandle(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPrediction(activePrediction("p1", types.Call, 450)))

	retrainer := &fakeRetrainer{}
	g := NewGrader(s, risk.NewProjector(), retrainer)
	g.GradeOpen()

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	assert.Len(t, active, 1, "no candle means the prediction stays ACTIVE")
	assert.Empty(t, retrainer.calls)
}

func TestGradeOpen_RetrainTriggerRate(t *testing.T) {
	s := openTestStore(t)

	// three deep winners, seven deep losers against a close of 450
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertPrediction(activePrediction(
			"win"+string(rune('a'+i)), types.Call, 446)))
	}
	for i := 0; i < 7; i++ {
		require.NoError(t, s.InsertPrediction(activePrediction(
			"loss"+string(rune('a'+i)), types.Call, 454)))
	}
	insertClose(t, s, 450)

	retrainer := &fakeRetrainer{}
	g := NewGrader(s, risk.NewProjector(), retrainer)
	g.GradeOpen()

	require.Contains(t, retrainer.calls, "SPY")
	assert.InDelta(t, 0.30, retrainer.calls["SPY"], 1e-9)

	joined, err := s.OutcomesJoined("SPY", time.Time{})
	require.NoError(t, err)
	assert.Len(t, joined, 10)
}

func TestExpireStale(t *testing.T) {
	s := openTestStore(t)

	stale := activePrediction("old", types.Call, 450)
	stale.GeneratedAt = time.Date(2025, 8, 19, 15, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPrediction(stale))

	g := NewGrader(s, nil, nil)
	g.ExpireStale(time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

	active, err := s.GetActivePredictions("")
	require.NoError(t, err)
	assert.Empty(t, active)

	joined, err := s.OutcomesJoined("", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, joined, "expiry writes no outcome")
}

func TestWinRateWindow(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 8, 20, 16, 0, 0, 0, time.UTC)

	closeAt := func(id string, result types.OutcomeResult, at time.Time) {
		p := activePrediction(id, types.Call, 450)
		require.NoError(t, s.InsertPrediction(p))
		pnl := 1.0
		if result == types.ResultLoss {
			pnl = -0.5
		}
		require.NoError(t, s.CloseWithOutcome(id, result, pnl, at))
	}

	closeAt("in1", types.ResultWin, now.AddDate(0, 0, -2))
	closeAt("in2", types.ResultWin, now.AddDate(0, 0, -3))
	closeAt("in3", types.ResultLoss, now.AddDate(0, 0, -4))
	closeAt("out1", types.ResultLoss, now.AddDate(0, 0, -10)) // outside the window

	g := NewGrader(s, nil, nil)
	g.now = func() time.Time { return now }

	stats, err := g.WinRate("SPY", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Graded)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 2.0/3.0, stats.Rate, 1e-9)
}

func TestDegradation(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 8, 20, 16, 0, 0, 0, time.UTC)

	seq := 0
	closeAt := func(result types.OutcomeResult, at time.Time) {
		seq++
		id := "p" + string(rune('0'+seq/10)) + string(rune('0'+seq%10))
		require.NoError(t, s.InsertPrediction(activePrediction(id, types.Call, 450)))
		require.NoError(t, s.CloseWithOutcome(id, result, 0.5, at))
	}

	// previous week: 8 of 10 wins
	prevAt := now.AddDate(0, 0, -10)
	for i := 0; i < 8; i++ {
		closeAt(types.ResultWin, prevAt)
	}
	closeAt(types.ResultLoss, prevAt)
	closeAt(types.ResultLoss, prevAt)

	// recent week: 4 of 10 wins
	recentAt := now.AddDate(0, 0, -2)
	for i := 0; i < 4; i++ {
		closeAt(types.ResultWin, recentAt)
	}
	for i := 0; i < 6; i++ {
		closeAt(types.ResultLoss, recentAt)
	}

	g := NewGrader(s, nil, nil)
	g.now = func() time.Time { return now }

	report, err := g.Degradation("SPY")
	require.NoError(t, err)
	assert.Equal(t, 10, report.Previous.Graded)
	assert.Equal(t, 10, report.Recent.Graded)
	assert.InDelta(t, 0.40, report.Degradation, 1e-9)
	assert.True(t, report.Alert)
}

func TestDegradation_SmallSampleNoAlert(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 8, 20, 16, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertPrediction(activePrediction("p1", types.Call, 450)))
	require.NoError(t, s.CloseWithOutcome("p1", types.ResultWin, 1.0, now.AddDate(0, 0, -10)))
	require.NoError(t, s.InsertPrediction(activePrediction("p2", types.Call, 450)))
	require.NoError(t, s.CloseWithOutcome("p2", types.ResultLoss, -0.5, now.AddDate(0, 0, -2)))

	g := NewGrader(s, nil, nil)
	g.now = func() time.Time { return now }

	report, err := g.Degradation("SPY")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Degradation, 1e-9)
	assert.False(t, report.Alert, "two grades are not enough for an alert")
}

func TestThresholdTuning(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 8, 20, 16, 0, 0, 0, time.UTC)

	closeAt := func(id string, result types.OutcomeResult, pnl float64, at time.Time) {
		require.NoError(t, s.InsertPrediction(activePrediction(id, types.Call, 450)))
		require.NoError(t, s.CloseWithOutcome(id, result, pnl, at))
	}
	closeAt("w1", types.ResultWin, 1.0, now.AddDate(0, 0, -10))
	closeAt("w2", types.ResultWin, 1.0, now.AddDate(0, 0, -10))
	closeAt("l1", types.ResultLoss, -0.5, now.AddDate(0, 0, -2))
	closeAt("l2", types.ResultLoss, -0.5, now.AddDate(0, 0, -2))

	g := NewGrader(s, nil, nil)
	g.now = func() time.Time { return now }

	// defaults: a full drop but only two recent grades, under the sample gate
	report, err := g.Degradation("SPY")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Degradation, 1e-9)
	assert.False(t, report.Alert)

	// lowering the sample gate lets the same drop alert
	g.SetThresholds(Thresholds{MinGraded: 2})
	report, err = g.Degradation("SPY")
	require.NoError(t, err)
	assert.True(t, report.Alert)

	// raising the drop threshold suppresses it again
	g.SetThresholds(Thresholds{MinGraded: 2, AlertThreshold: 1.5})
	report, err = g.Degradation("SPY")
	require.NoError(t, err)
	assert.False(t, report.Alert)

	// a three-day window pushes the old wins out of both halves
	g.SetThresholds(Thresholds{WindowDays: 3})
	report, err = g.Degradation("SPY")
	require.NoError(t, err)
	assert.Zero(t, report.Previous.Graded)
	assert.Equal(t, 2, report.Recent.Graded)

	// WinRate with no explicit window follows the configured one
	g.SetThresholds(Thresholds{WindowDays: 5})
	stats, err := g.WinRate("SPY", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Graded, "ten-day-old wins sit outside the five-day window")
}
