package evolution

import (
	"math/rand"

	"github.com/tmarlen/aurora/pkg/types"
)

// Per-field bounds and mutation noise. Component weights renormalize to sum
// 1 after any operation that touches them.
type fieldRange struct {
	lo, hi, noise float64
}

var geneRanges = struct {
	tpo, rsi, ib, cvd, vwap         fieldRange
	minConfidence                   fieldRange
	orbBreakout, stopLoss, targetMu fieldRange
}{
	tpo:           fieldRange{0.05, 0.5, 0.05},
	rsi:           fieldRange{0.05, 0.4, 0.05},
	ib:            fieldRange{0.05, 0.4, 0.05},
	cvd:           fieldRange{0.05, 0.3, 0.05},
	vwap:          fieldRange{0.05, 0.4, 0.05},
	minConfidence: fieldRange{50, 80, 5},
	orbBreakout:   fieldRange{0.3, 3.0, 0.2},
	stopLoss:      fieldRange{0.2, 0.8, 0.1},
	targetMu:      fieldRange{1.2, 4.0, 0.3},
}

func (r fieldRange) random(rng *rand.Rand) float64 {
	return r.lo + rng.Float64()*(r.hi-r.lo)
}

func (r fieldRange) mutate(v float64, rng *rand.Rand) float64 {
	v += (rng.Float64()*2 - 1) * r.noise
	return clamp(v, r.lo, r.hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// randomGenes draws a genome uniformly within bounds, components normalized.
func randomGenes(rng *rand.Rand) types.Genes {
	g := types.Genes{
		TPO:             geneRanges.tpo.random(rng),
		RSI:             geneRanges.rsi.random(rng),
		IB:              geneRanges.ib.random(rng),
		CVD:             geneRanges.cvd.random(rng),
		VWAP:            geneRanges.vwap.random(rng),
		MinConfidence:   geneRanges.minConfidence.random(rng),
		ORBBreakoutMult: geneRanges.orbBreakout.random(rng),
		StopLossMult:    geneRanges.stopLoss.random(rng),
		TargetMult:      geneRanges.targetMu.random(rng),
	}
	g.Normalize()
	return g
}

// crossover picks each field uniformly from either parent, then renormalizes
// the component weights.
func crossover(a, b types.Genes, rng *rand.Rand) types.Genes {
	pick := func(x, y float64) float64 {
		if rng.Intn(2) == 0 {
			return x
		}
		return y
	}
	child := types.Genes{
		TPO:             pick(a.TPO, b.TPO),
		RSI:             pick(a.RSI, b.RSI),
		IB:              pick(a.IB, b.IB),
		CVD:             pick(a.CVD, b.CVD),
		VWAP:            pick(a.VWAP, b.VWAP),
		MinConfidence:   pick(a.MinConfidence, b.MinConfidence),
		ORBBreakoutMult: pick(a.ORBBreakoutMult, b.ORBBreakoutMult),
		StopLossMult:    pick(a.StopLossMult, b.StopLossMult),
		TargetMult:      pick(a.TargetMult, b.TargetMult),
	}
	child.Normalize()
	return child
}

// mutate perturbs each field with probability rate, clamps it into bounds,
// and renormalizes when a component weight changed.
func mutate(g types.Genes, rate float64, rng *rand.Rand) types.Genes {
	componentsTouched := false
	maybe := func(v *float64, r fieldRange, component bool) {
		if rng.Float64() < rate {
			*v = r.mutate(*v, rng)
			if component {
				componentsTouched = true
			}
		}
	}
	maybe(&g.TPO, geneRanges.tpo, true)
	maybe(&g.RSI, geneRanges.rsi, true)
	maybe(&g.IB, geneRanges.ib, true)
	maybe(&g.CVD, geneRanges.cvd, true)
	maybe(&g.VWAP, geneRanges.vwap, true)
	maybe(&g.MinConfidence, geneRanges.minConfidence, false)
	maybe(&g.ORBBreakoutMult, geneRanges.orbBreakout, false)
	maybe(&g.StopLossMult, geneRanges.stopLoss, false)
	maybe(&g.TargetMult, geneRanges.targetMu, false)

	if componentsTouched {
		g.Normalize()
	}
	return g
}
