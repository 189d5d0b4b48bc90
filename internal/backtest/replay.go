package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/pkg/types"
)

// Replay windowing: score each 30-candle window, advance by 10, and let a
// trade resolve over the next up-to-10 candles.
const (
	minReplayCandles = 60
	windowSize       = 30
	windowStep       = 10
	maxHoldCandles   = 10
)

// Trade is one synthesized premium-level trade inside a replay.
type Trade struct {
	EntryTime    time.Time
	ExitTime     time.Time
	Direction    types.OptionType
	EntryStock   float64
	ExitStock    float64
	EntryPremium float64
	ExitPremium  float64
	PnL          float64
	Confidence   float64
}

// Results aggregates one replay run.
type Results struct {
	Ticker       string
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	MaxDrawdown  float64
	TotalPnL     float64
	Trades       []Trade
	Start        time.Time
	End          time.Time
}

// Run replays a candle window through the TPO+MIT scoring with the supplied
// genes. Fewer than 60 candles returns an all-zero result. Premium P&L uses
// the risk projector's default-delta fallback; the genes' stop/target
// multipliers shape the premium exit levels.
func Run(ticker string, candles []types.Candle, genes types.Genes, cfg parallax.Config) *Results {
	res := &Results{Ticker: ticker}
	if len(candles) < minReplayCandles {
		return res
	}
	res.Start = candles[0].Timestamp
	res.End = candles[len(candles)-1].Timestamp

	projector := risk.NewProjector()
	projector.DefaultStopPct = genes.StopLossMult
	projector.DefaultTargetMult = genes.TargetMult

	for i := windowSize; i+1 < len(candles); i += windowStep {
		window := candles[i-windowSize : i]
		price := window[len(window)-1].Close

		sig := parallax.TPOMITSignal(window, price, genes, cfg)
		if sig == nil || sig.Confidence < genes.MinConfidence {
			continue
		}

		entryPremium := math.Max(0.05, price*0.01)
		plan := projector.Project(entryPremium, sig.Levels, nil)

		trade := Trade{
			EntryTime:    window[len(window)-1].Timestamp,
			Direction:    sig.Direction,
			EntryStock:   price,
			EntryPremium: entryPremium,
			Confidence:   sig.Confidence,
		}

		// walk forward until the projected premium tags the stop or target
		exitIdx := min(i+maxHoldCandles, len(candles)-1)
		for j := i; j <= exitIdx; j++ {
			premium := projector.CurrentPremium(entryPremium, price, candles[j].Close, sig.Direction)
			trade.ExitTime = candles[j].Timestamp
			trade.ExitStock = candles[j].Close
			trade.ExitPremium = premium
			if premium >= plan.Target || premium <= plan.Stop {
				break
			}
		}

		trade.PnL = trade.ExitPremium - trade.EntryPremium
		res.Trades = append(res.Trades, trade)
	}

	res.finalize()
	return res
}

func (r *Results) finalize() {
	r.TotalTrades = len(r.Trades)
	if r.TotalTrades == 0 {
		return
	}

	var gain, loss float64
	equity := 100.0
	peak := equity
	for _, t := range r.Trades {
		if t.PnL > 0 {
			r.Wins++
			gain += t.PnL
		} else {
			r.Losses++
			loss += -t.PnL
		}
		r.TotalPnL += t.PnL

		equity += t.PnL * 100 // one contract, 100 shares
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > r.MaxDrawdown {
				r.MaxDrawdown = dd
			}
		}
	}

	r.WinRate = float64(r.Wins) / float64(r.TotalTrades)
	switch {
	case loss > 0:
		r.ProfitFactor = gain / loss
	case gain > 0:
		r.ProfitFactor = 999 // bounded stand-in for "no losing trades"
	}
}

// ToRecord converts the aggregate into the persisted shape.
func (r *Results) ToRecord(strategyName string) types.BacktestResult {
	return types.BacktestResult{
		Ticker:       r.Ticker,
		StrategyName: strategyName,
		TimeRange:    fmt.Sprintf("%s/%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")),
		TotalTrades:  r.TotalTrades,
		WinRate:      r.WinRate,
		ProfitFactor: r.ProfitFactor,
		MaxDrawdown:  r.MaxDrawdown,
		RunAt:        time.Now(),
	}
}
