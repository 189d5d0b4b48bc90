package evolution

import (
	"fmt"
	"log"
	"time"

	"github.com/tmarlen/aurora/internal/backtest"
	"github.com/tmarlen/aurora/internal/monitoring"
	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/internal/store"
	"github.com/tmarlen/aurora/pkg/types"
)

// Repository is the slice of the store the optimizer reads and writes.
type Repository interface {
	OutcomesJoined(ticker string, since time.Time) ([]store.JoinedOutcome, error)
	RecentCandles(ticker, interval string, n int) ([]types.Candle, error)
	UpsertActiveWeights(ticker string, genes types.Genes, winRate float64, reason string) error
}

// Invalidator drops a ticker's cached weights so the hot-swap is picked up
// on the fuser's next read.
type Invalidator interface {
	Invalidate(ticker string)
}

// DefaultWinRateFloor is the accuracy floor under which retraining fires.
const DefaultWinRateFloor = 0.60

// fitnessCandleBudget is five regular sessions of one-minute candles.
const fitnessCandleBudget = 5 * 390

// Optimizer wires the genetic search to the store and the fuser cache.
type Optimizer struct {
	repo      Repository
	cache     Invalidator
	params    Params
	replayCfg parallax.Config
	floor     float64
	seed      func() int64
}

// NewOptimizer builds the optimizer. floor <= 0 uses the default 0.60.
func NewOptimizer(repo Repository, cache Invalidator, params Params, replayCfg parallax.Config, floor float64) *Optimizer {
	if floor <= 0 {
		floor = DefaultWinRateFloor
	}
	return &Optimizer{
		repo:      repo,
		cache:     cache,
		params:    params,
		replayCfg: replayCfg,
		floor:     floor,
		seed:      func() int64 { return time.Now().UnixNano() },
	}
}

// MaybeEvolve retrains the ticker's weights when the current win rate sits
// below the floor. Any failure leaves the existing active weights untouched.
func (o *Optimizer) MaybeEvolve(ticker string, currentWinRate float64) {
	if currentWinRate >= o.floor {
		return
	}

	alpha, err := o.evolve(ticker)
	if err != nil {
		log.Printf("[Evolution] %s: %v", ticker, err)
		monitoring.RecordEvolution(ticker, "error")
		return
	}

	reason := fmt.Sprintf("win rate %.2f below floor %.2f", currentWinRate, o.floor)
	if err := o.repo.UpsertActiveWeights(ticker, alpha, currentWinRate, reason); err != nil {
		log.Printf("[Evolution] %s persist: %v", ticker, err)
		monitoring.RecordEvolution(ticker, "error")
		return
	}
	if o.cache != nil {
		o.cache.Invalidate(ticker)
	}
	monitoring.RecordEvolution(ticker, "swapped")
	log.Printf("[Evolution] %s: new weights active (%s)", ticker, reason)
}

// evolve builds the fitness landscape and runs the genetic search. When the
// store holds enough candle history, every candidate is scored by replaying
// it against that history; with a thin tape the score degrades to the
// outcome-dataset read, which is the same for all candidates.
func (o *Optimizer) evolve(ticker string) (types.Genes, error) {
	outcomes, err := o.repo.OutcomesJoined(ticker, time.Time{})
	if err != nil {
		return types.Genes{}, fmt.Errorf("load outcomes: %w", err)
	}
	candles, err := o.repo.RecentCandles(ticker, types.Interval1m, fitnessCandleBudget)
	if err != nil {
		return types.Genes{}, fmt.Errorf("load candles: %w", err)
	}

	fitness := o.buildFitness(ticker, candles, outcomes)
	engine := NewEngine(o.params, fitness, o.seed())
	return engine.Evolve(), nil
}

func (o *Optimizer) buildFitness(ticker string, candles []types.Candle, outcomes []store.JoinedOutcome) FitnessFunc {
	if len(candles) >= 60 {
		return func(genes types.Genes) float64 {
			res := backtest.Run(ticker, candles, genes, o.replayCfg)
			if res.TotalTrades == 0 {
				return OutcomeScore(outcomes)
			}
			score := 0.7 * res.WinRate
			if res.TotalPnL > 0 {
				score += 0.3
			}
			return score
		}
	}
	constant := OutcomeScore(outcomes)
	return func(types.Genes) float64 { return constant }
}

// OutcomeScore reads the graded history: 0.5 with no history, otherwise
// 0.7·winRate plus 0.3 when the average realized P&L is positive.
func OutcomeScore(outcomes []store.JoinedOutcome) float64 {
	if len(outcomes) == 0 {
		return 0.5
	}
	wins := 0
	var pnl float64
	for _, j := range outcomes {
		if j.Outcome.Result == types.ResultWin {
			wins++
		}
		pnl += j.Outcome.ActualPnl
	}
	score := 0.7 * float64(wins) / float64(len(outcomes))
	if pnl/float64(len(outcomes)) > 0 {
		score += 0.3
	}
	return score
}
