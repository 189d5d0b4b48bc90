package indicators

import (
	"math"

	"github.com/tmarlen/aurora/pkg/types"
)

// Impulse is the directional read of the session covered by a TPO profile.
type Impulse string

const (
	ImpulseBullish Impulse = "BULLISH"
	ImpulseBearish Impulse = "BEARISH"
	ImpulseNeutral Impulse = "NEUTRAL"
)

// TPOBias is where the current price sits relative to the value area.
type TPOBias string

const (
	BiasLong    TPOBias = "LONG"
	BiasShort   TPOBias = "SHORT"
	BiasNeutral TPOBias = "NEUTRAL"
)

// TPOProfile is a volume-at-price distribution with its value area.
type TPOProfile struct {
	POC       float64
	VAH       float64
	VAL       float64
	Impulse   Impulse
	Histogram map[float64]float64
	TotalMass float64
	Range     float64
	TickSize  float64
}

// DefaultTickSize is the TPO bin width.
const DefaultTickSize = 0.25

// DefaultValueAreaFraction is the share of total mass the value area covers.
const DefaultValueAreaFraction = 0.70

// BuildTPO constructs a TPO profile from a candle window. Each candle's
// volume is spread uniformly across every tick in [low, high] inclusive.
// Returns nil on an empty window.
func BuildTPO(candles []types.Candle, tickSize, valueAreaFraction float64) *TPOProfile {
	if len(candles) == 0 {
		return nil
	}
	if tickSize <= 0 {
		tickSize = DefaultTickSize
	}
	if valueAreaFraction <= 0 || valueAreaFraction > 1 {
		valueAreaFraction = DefaultValueAreaFraction
	}

	tickOf := func(price float64) int {
		return int(math.Round(price / tickSize))
	}

	mass := make(map[int]float64)
	total := 0.0
	sessionHigh := candles[0].High
	sessionLow := candles[0].Low
	for _, c := range candles {
		if c.High > sessionHigh {
			sessionHigh = c.High
		}
		if c.Low < sessionLow {
			sessionLow = c.Low
		}
		lo, hi := tickOf(c.Low), tickOf(c.High)
		if hi < lo {
			lo, hi = hi, lo
		}
		per := c.Volume / float64(hi-lo+1)
		for t := lo; t <= hi; t++ {
			mass[t] += per
		}
		total += c.Volume
	}

	// POC: maximum mass, lowest tick wins ties.
	poc := 0
	best := -1.0
	for t, m := range mass {
		if m > best || (m == best && t < poc) {
			poc = t
			best = m
		}
	}

	vah, val := expandValueArea(mass, poc, total*valueAreaFraction)

	open := candles[0].Open
	last := candles[len(candles)-1].Close
	sessionRange := sessionHigh - sessionLow
	impulse := ImpulseNeutral
	if sessionRange > 0 && math.Abs(last-open)/sessionRange >= 0.1 {
		if last > open {
			impulse = ImpulseBullish
		} else {
			impulse = ImpulseBearish
		}
	}

	hist := make(map[float64]float64, len(mass))
	for t, m := range mass {
		hist[float64(t)*tickSize] = m
	}

	return &TPOProfile{
		POC:       float64(poc) * tickSize,
		VAH:       float64(vah) * tickSize,
		VAL:       float64(val) * tickSize,
		Impulse:   impulse,
		Histogram: hist,
		TotalMass: total,
		Range:     sessionRange,
		TickSize:  tickSize,
	}
}

// expandValueArea grows the value area outward from the POC one tick at a
// time, taking the richer neighbor; on a tie it expands down first.
func expandValueArea(mass map[int]float64, poc int, targetMass float64) (vah, val int) {
	lo, hi := poc, poc
	acc := mass[poc]

	minTick, maxTick := poc, poc
	for t := range mass {
		if t < minTick {
			minTick = t
		}
		if t > maxTick {
			maxTick = t
		}
	}

	for acc < targetMass && (lo > minTick || hi < maxTick) {
		var below, above float64
		hasBelow := lo > minTick
		hasAbove := hi < maxTick
		if hasBelow {
			below = mass[lo-1]
		}
		if hasAbove {
			above = mass[hi+1]
		}
		switch {
		case hasBelow && (!hasAbove || below >= above):
			lo--
			acc += below
		default:
			hi++
			acc += above
		}
	}
	return hi, lo
}

// Bias classifies a price against the profile's value area. Inside the value
// area is neutral; above VAH the auction is stretched and mean reversion
// favors the short side, below VAL the long side.
func (p *TPOProfile) Bias(price float64) TPOBias {
	switch {
	case price > p.VAH:
		return BiasShort
	case price < p.VAL:
		return BiasLong
	default:
		return BiasNeutral
	}
}
