package risk

import (
	"math"

	"github.com/tmarlen/aurora/pkg/types"
)

// Projector converts stock-price trade levels into option-premium levels via
// delta projection. It is the only sanctioned stock-to-premium conversion;
// everything downstream treats trade-plan numbers as option premium.
type Projector struct {
	// DefaultStopPct and DefaultTargetMult drive the fallback rule when the
	// chain carries no greeks.
	DefaultStopPct    float64
	DefaultTargetMult float64
	// DefaultDelta is the near-ATM delta assumed when grading a prediction
	// whose original greeks are no longer available.
	DefaultDelta float64
}

// NewProjector returns a projector with the documented defaults.
func NewProjector() *Projector {
	return &Projector{
		DefaultStopPct:    0.5,
		DefaultTargetMult: 2.0,
		DefaultDelta:      0.5,
	}
}

// StockLevels are the engine-produced trade levels on the underlying.
type StockLevels struct {
	Entry  float64
	Stop   float64
	Target float64
}

// minPremium floors projected premiums; an option never trades below a nickel
// in the plan even when the projection collapses.
const minPremium = 0.05

// Project builds a premium-denominated trade plan from the current option
// mid, the stock levels, and the contract delta. A nil delta triggers the
// percentage fallback.
func (p *Projector) Project(midNow float64, levels StockLevels, delta *float64) types.TradePlan {
	if delta == nil || *delta == 0 {
		return p.fallback(midNow)
	}

	absDelta := math.Abs(*delta)
	stopDist := math.Abs(levels.Entry - levels.Stop)
	targetDist := math.Abs(levels.Target - levels.Entry)

	plan := types.TradePlan{
		Entry:  midNow,
		Stop:   math.Max(minPremium, midNow-stopDist*absDelta),
		Target: math.Max(minPremium, midNow+targetDist*absDelta),
	}
	plan.RiskReward = riskReward(plan)
	return plan
}

// fallback applies the premium-percentage rule used when greeks are absent.
func (p *Projector) fallback(midNow float64) types.TradePlan {
	plan := types.TradePlan{
		Entry:  midNow,
		Stop:   midNow * (1 - p.DefaultStopPct),
		Target: midNow * p.DefaultTargetMult,
	}
	plan.RiskReward = riskReward(plan)
	return plan
}

// CurrentPremium estimates where a previously entered option trades now,
// given the stock move since entry. Used by the grader after the original
// greeks are gone; sign is +1 for calls, -1 for puts.
func (p *Projector) CurrentPremium(entryPremium, entryStock, currentStock float64, direction types.OptionType) float64 {
	sign := 1.0
	if direction == types.Put {
		sign = -1.0
	}
	return math.Max(0.01, entryPremium+(currentStock-entryStock)*sign*p.DefaultDelta)
}

func riskReward(plan types.TradePlan) float64 {
	denom := plan.Entry - plan.Stop
	if denom <= 0 {
		return 0
	}
	return (plan.Target - plan.Entry) / denom
}
