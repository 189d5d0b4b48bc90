package parallax

import (
	"fmt"
	"math"

	"github.com/tmarlen/aurora/internal/indicators"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/pkg/types"
)

// minTPOCandles is the history the TPO+MIT engine needs before it will read
// the auction.
const minTPOCandles = 30

// TPOMITSignal runs the TPO + market-internals scoring over a one-minute
// candle window. Exported so the backtest replay applies the exact same
// scoring as the live fuser. Returns nil when the window is too thin or the
// direction is undetermined.
func TPOMITSignal(candles []types.Candle, price float64, genes types.Genes, cfg Config) *Signal {
	if len(candles) < minTPOCandles || price <= 0 {
		return nil
	}

	profile := indicators.BuildTPO(candles, cfg.TickSize, cfg.ValueAreaFraction)
	if profile == nil {
		return nil
	}
	snap := indicators.Snapshot(candles)
	ib := indicators.BuildInitialBalance(candles, cfg.IBDuration)
	cvd := indicators.CVD(candles)

	// Per-signal scores in [0,1]. A signal missing its input stays out of
	// the weighted sum entirely.
	scores := make(map[string]float64)
	weights := make(map[string]float64)

	bias := profile.Bias(price)
	if bias != indicators.BiasNeutral {
		scores["tpo"] = 0.7
	} else {
		scores["tpo"] = 0.3
	}
	weights["tpo"] = genes.TPO

	var rsiDir types.OptionType
	rsiExtreme := false
	if snap.RSI14 != nil {
		switch {
		case *snap.RSI14 < 30:
			scores["rsi"] = 0.8
			rsiDir = types.Call
			rsiExtreme = true
		case *snap.RSI14 > 70:
			scores["rsi"] = 0.8
			rsiDir = types.Put
			rsiExtreme = true
		default:
			scores["rsi"] = 0.5
		}
		weights["rsi"] = genes.RSI
	}

	ibBreak := false
	if ib != nil {
		above, below := ib.Breakout(price)
		ibBreak = above || below
		if ibBreak {
			scores["ib"] = 0.75
		} else {
			scores["ib"] = 0.4
		}
		weights["ib"] = genes.IB
	}

	if cvd.Divergence {
		scores["cvd"] = 0.65
	} else {
		scores["cvd"] = 0.5
	}
	weights["cvd"] = genes.CVD

	if snap.VWAP != nil && *snap.VWAP > 0 {
		dist := math.Abs(price-*snap.VWAP) / *snap.VWAP
		switch {
		case dist < 0.01:
			scores["vwap"] = 0.6
		case dist < 0.02:
			scores["vwap"] = 0.5
		default:
			scores["vwap"] = 0.4
		}
		weights["vwap"] = genes.VWAP
	}

	var weighted, totalWeight float64
	for name, score := range scores {
		w := weights[name]
		weighted += w * score
		totalWeight += w
	}
	if totalWeight <= 0 {
		return nil
	}
	confidence := 100 * weighted / totalWeight

	// Direction: the auction read wins; an RSI extreme fills in when the
	// price is inside value; open disagreement produces nothing.
	var direction types.OptionType
	var tpoDir types.OptionType
	switch bias {
	case indicators.BiasLong:
		tpoDir = types.Call
	case indicators.BiasShort:
		tpoDir = types.Put
	}
	switch {
	case tpoDir != "" && rsiExtreme && rsiDir != tpoDir:
		return nil
	case tpoDir != "":
		direction = tpoDir
	case rsiExtreme:
		direction = rsiDir
	default:
		return nil
	}

	// Stock levels: mean reversion into value with an ATR-sized stop.
	atr := price * 0.005
	if snap.ATR != nil && *snap.ATR > 0 {
		atr = *snap.ATR
	}
	stopDist := atr * cfg.ATRMult
	levels := risk.StockLevels{Entry: price}
	if direction == types.Call {
		levels.Stop = price - stopDist
		if tpoDir == types.Call {
			levels.Target = profile.POC
		} else {
			levels.Target = profile.VAH
		}
		if levels.Target <= price {
			levels.Target = price + stopDist*2
		}
	} else {
		levels.Stop = price + stopDist
		if tpoDir == types.Put {
			levels.Target = profile.POC
		} else {
			levels.Target = profile.VAL
		}
		if levels.Target >= price {
			levels.Target = price - stopDist*2
		}
	}

	var rsi14 float64
	if snap.RSI14 != nil {
		rsi14 = *snap.RSI14
	}

	return &Signal{
		Direction:  direction,
		Strike:     otmStrike(price, direction, 1.0),
		Confidence: confidence,
		Engine:     types.EngineTPOMIT,
		Levels:     levels,
		Reasoning: types.Reasoning{
			Engine: types.EngineTPOMIT,
			Summary: fmt.Sprintf("%s vs value area [%.2f, %.2f], POC %.2f",
				bias, profile.VAL, profile.VAH, profile.POC),
			Scores: scores,
			TPO: &types.TPOReasoning{
				POC:       profile.POC,
				VAH:       profile.VAH,
				VAL:       profile.VAL,
				Bias:      string(bias),
				RSI14:     rsi14,
				IBBreak:   ibBreak,
				CVDDiverg: cvd.Divergence,
			},
		},
	}
}
