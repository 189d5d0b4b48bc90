package backtest

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/pkg/types"
)

// walkTape generates a deterministic mean-reverting random walk so that some
// replay windows end stretched away from value.
func walkTape(n int, seed int64) []types.Candle {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 8, 20, 9, 30, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	price := 450.0
	for i := range out {
		drift := (450 - price) * 0.05
		step := drift + rng.NormFloat64()*0.6
		open := price
		price += step
		high := math.Max(open, price) + 0.1
		low := math.Min(open, price) - 0.1
		out[i] = types.Candle{
			Ticker: "SPY", Open: open, High: high, Low: low, Close: price,
			Volume: 1000 + rng.Float64()*500,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Interval:  types.Interval1m,
		}
	}
	return out
}

func TestRun_ThinTapeReturnsZeros(t *testing.T) {
	res := Run("SPY", walkTape(59, 1), types.DefaultGenes(), parallax.DefaultConfig())
	assert.Zero(t, res.TotalTrades)
	assert.Zero(t, res.WinRate)
	assert.Zero(t, res.ProfitFactor)
	assert.Empty(t, res.Trades)
}

func TestRun_AggregatesConsistent(t *testing.T) {
	genes := types.DefaultGenes()
	genes.MinConfidence = 50
	res := Run("SPY", walkTape(600, 7), genes, parallax.DefaultConfig())

	assert.Equal(t, res.TotalTrades, len(res.Trades))
	assert.Equal(t, res.TotalTrades, res.Wins+res.Losses)
	if res.TotalTrades > 0 {
		assert.InDelta(t, float64(res.Wins)/float64(res.TotalTrades), res.WinRate, 1e-9)
	}
	assert.GreaterOrEqual(t, res.MaxDrawdown, 0.0)

	var pnl float64
	for _, tr := range res.Trades {
		pnl += tr.PnL
		assert.False(t, tr.ExitTime.Before(tr.EntryTime))
		assert.GreaterOrEqual(t, tr.EntryPremium, 0.05)
	}
	assert.InDelta(t, pnl, res.TotalPnL, 1e-9)
}

func TestRun_MinConfidenceMonotonicity(t *testing.T) {
	tape := walkTape(600, 7)
	prev := math.MaxInt
	for _, floor := range []float64{0, 50, 60, 70, 80, 101} {
		genes := types.DefaultGenes()
		genes.MinConfidence = floor
		res := Run("SPY", tape, genes, parallax.DefaultConfig())
		assert.LessOrEqual(t, res.TotalTrades, prev,
			"raising the confidence floor must not add trades")
		prev = res.TotalTrades
	}
}

func TestRun_ImpossibleFloorTakesNothing(t *testing.T) {
	genes := types.DefaultGenes()
	genes.MinConfidence = 101
	res := Run("SPY", walkTape(300, 3), genes, parallax.DefaultConfig())
	assert.Zero(t, res.TotalTrades)
}

func TestResults_ToRecord(t *testing.T) {
	tape := walkTape(120, 5)
	res := Run("SPY", tape, types.DefaultGenes(), parallax.DefaultConfig())

	rec := res.ToRecord("TPO_MIT")
	assert.Equal(t, "SPY", rec.Ticker)
	assert.Equal(t, "TPO_MIT", rec.StrategyName)
	assert.Equal(t, "2025-08-20/2025-08-20", rec.TimeRange)
	assert.Equal(t, res.TotalTrades, rec.TotalTrades)
	assert.False(t, rec.RunAt.IsZero())
}

func TestFinalize_ProfitFactorCap(t *testing.T) {
	r := &Results{Trades: []Trade{{PnL: 0.5}, {PnL: 0.3}}}
	r.finalize()
	assert.Equal(t, 999.0, r.ProfitFactor, "all winners hit the bounded stand-in")
	assert.InDelta(t, 1.0, r.WinRate, 1e-9)
	require.Equal(t, 2, r.TotalTrades)
}
