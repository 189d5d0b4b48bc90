package parallax

import (
	"fmt"
	"math"
	"time"

	"github.com/tmarlen/aurora/internal/calendar"
	"github.com/tmarlen/aurora/internal/indicators"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/pkg/types"
)

// Config carries the fuser's structural parameters.
type Config struct {
	TickSize          float64
	ValueAreaFraction float64
	IBDuration        time.Duration
	ORBDuration       time.Duration
	ATRMult           float64
	// ConfidenceFloor is the operator's minimum confidence; the effective
	// gate is the higher of it and the active weights' own floor. Zero
	// leaves the gate entirely to the weights.
	ConfidenceFloor float64
}

// DefaultConfig returns the documented fuser defaults.
func DefaultConfig() Config {
	return Config{
		TickSize:          indicators.DefaultTickSize,
		ValueAreaFraction: indicators.DefaultValueAreaFraction,
		IBDuration:        indicators.DefaultIBDuration,
		ORBDuration:       indicators.ORBCandleCount * time.Minute,
		ATRMult:           2.0,
	}
}

// Input is everything one evaluation needs for one ticker.
type Input struct {
	Ticker  string
	Session calendar.Session
	// Candles are today's one-minute regular-hours candles; for the
	// pre-market engine they are the pre-market prints instead.
	Candles []types.Candle
	Price   float64
	// IV is the at-the-money implied vol when known, used only by the
	// pre-market engine.
	IV float64
}

// Signal is an accepted engine result before the risk projector overlays the
// contract premium plan.
type Signal struct {
	Direction  types.OptionType
	Strike     float64
	Confidence float64
	Engine     types.Engine
	Levels     risk.StockLevels
	Reasoning  types.Reasoning
}

// Fuser picks the engine for the session and fuses per-signal scores into a
// confidence using the active weights for the ticker.
type Fuser struct {
	weights *WeightsCache
	cfg     Config
}

// New builds a fuser over a weights cache.
func New(weights *WeightsCache, cfg Config) *Fuser {
	if cfg.TickSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Fuser{weights: weights, cfg: cfg}
}

// Evaluate runs the engine appropriate for the session and returns at most
// one signal. Nil means no actionable read this cycle; it is never an error.
func (f *Fuser) Evaluate(in Input) *Signal {
	if in.Price <= 0 {
		return nil
	}
	genes := f.weights.Get(in.Ticker)

	var sig *Signal
	switch {
	case in.Session == calendar.SessionPreMarket:
		sig = preMarketSignal(in, genes)
	case in.Session == calendar.SessionOpeningRange:
		sig = orbSignal(in, genes, f.cfg)
	case in.Session.IsTrading():
		sig = TPOMITSignal(in.Candles, in.Price, genes, f.cfg)
		if sig == nil {
			// post-OR fallback when the main engine is silent
			sig = orbSignal(in, genes, f.cfg)
		}
	default:
		return nil
	}

	minConf := genes.MinConfidence
	if f.cfg.ConfidenceFloor > minConf {
		minConf = f.cfg.ConfidenceFloor
	}
	if sig == nil || sig.Confidence < minConf {
		return nil
	}
	return sig
}

// preMarketSignal is the Black-Scholes engine. It needs a directional
// pre-market bias; a neutral tape produces nothing.
func preMarketSignal(in Input, genes types.Genes) *Signal {
	if len(in.Candles) == 0 {
		return nil
	}

	bias := premarketBias(in.Candles)
	if bias == indicators.ImpulseNeutral {
		return nil
	}

	direction := types.Call
	if bias == indicators.ImpulseBearish {
		direction = types.Put
	}
	strike := otmStrike(in.Price, direction, 0.5)

	// moneyness measured so a slightly OTM strike lands just below zero
	var moneyness float64
	if direction == types.Call {
		moneyness = (in.Price - strike) / strike
	} else {
		moneyness = (strike - in.Price) / strike
	}

	confidence := 50.0
	if moneyness > -0.02 && moneyness < 0 {
		confidence += 10
	}
	if in.IV > 0.3 && in.IV < 0.5 {
		confidence += 5
	}
	cvd := indicators.CVD(in.Candles)
	confirmed := (bias == indicators.ImpulseBullish && cvd.Cumulative > 0) ||
		(bias == indicators.ImpulseBearish && cvd.Cumulative < 0)
	if confirmed {
		confidence += 5
	}

	// stock levels from the expected one-day move
	sigma := in.IV
	if sigma <= 0 {
		sigma = 0.25
	}
	move := indicators.ExpectedMove(in.Price, sigma, 1.0/252)
	levels := risk.StockLevels{Entry: in.Price}
	if direction == types.Call {
		levels.Target = in.Price + move
		levels.Stop = in.Price - move/2
	} else {
		levels.Target = in.Price - move
		levels.Stop = in.Price + move/2
	}

	t := 1.0 / 252
	theo := indicators.BlackScholes(in.Price, strike, t, 0.05, sigma, direction)
	delta := indicators.BSGreeks(in.Price, strike, t, 0.05, sigma, direction).Delta

	return &Signal{
		Direction:  direction,
		Strike:     strike,
		Confidence: confidence,
		Engine:     types.EngineBlackScholes,
		Levels:     levels,
		Reasoning: types.Reasoning{
			Engine:  types.EngineBlackScholes,
			Summary: fmt.Sprintf("pre-market %s bias, expected move %.2f", bias, move),
			BS: &types.BSReasoning{
				Theoretical: theo,
				IV:          sigma,
				Delta:       delta,
				Moneyness:   moneyness,
				Bias:        string(bias),
			},
		},
	}
}

// premarketBias applies the impulse rule to the pre-market tape: a body
// smaller than a tenth of the range is noise.
func premarketBias(candles []types.Candle) indicators.Impulse {
	high, low := candles[0].High, candles[0].Low
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	rng := high - low
	body := candles[len(candles)-1].Close - candles[0].Open
	if rng <= 0 || math.Abs(body)/rng < 0.1 {
		return indicators.ImpulseNeutral
	}
	if body > 0 {
		return indicators.ImpulseBullish
	}
	return indicators.ImpulseBearish
}

// orbSignal is the opening-range breakout engine.
func orbSignal(in Input, genes types.Genes, cfg Config) *Signal {
	orb := indicators.BuildORB(in.Candles, int(cfg.ORBDuration/time.Minute))
	if orb == nil {
		return nil
	}

	var direction types.OptionType
	var strength float64
	switch {
	case in.Price > orb.High:
		direction = types.Call
		strength = (in.Price - orb.High) / orb.RangeSize
	case in.Price < orb.Low:
		direction = types.Put
		strength = (orb.Low - in.Price) / orb.RangeSize
	default:
		return nil
	}
	strength *= genes.ORBBreakoutMult

	confidence := 55 + math.Min(20, 40*strength)

	levels := risk.StockLevels{Entry: in.Price}
	if direction == types.Call {
		levels.Stop = orb.LongStop
		levels.Target = orb.BullTarget1
	} else {
		levels.Stop = orb.ShortStop
		levels.Target = orb.BearTarget1
	}

	return &Signal{
		Direction:  direction,
		Strike:     otmStrike(in.Price, direction, 1.0),
		Confidence: confidence,
		Engine:     types.EngineORBMomentum,
		Levels:     levels,
		Reasoning: types.Reasoning{
			Engine:  types.EngineORBMomentum,
			Summary: fmt.Sprintf("%s breakout of opening range, strength %.2f", direction, strength),
			ORB: &types.ORBReasoning{
				RangeHigh: orb.High,
				RangeLow:  orb.Low,
				Strength:  strength,
			},
		},
	}
}

// otmStrike rounds price shifted 0.5% out of the money to the nearest step.
func otmStrike(price float64, direction types.OptionType, step float64) float64 {
	target := price * 1.005
	if direction == types.Put {
		target = price * 0.995
	}
	return math.Round(target/step) * step
}
