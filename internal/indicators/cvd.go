package indicators

import (
	"math"

	"github.com/tmarlen/aurora/pkg/types"
)

// CVDResult carries the cumulative volume delta for a window and whether it
// diverges from price direction.
type CVDResult struct {
	Cumulative float64
	Divergence bool
}

// CVD computes the cumulative volume delta. Each candle contributes
// sign(close-open) · volume · |close-open|/(high-low); dojis and zero-range
// bars contribute nothing. Divergence is flagged when the price move over
// the window and the accumulated delta disagree in sign.
func CVD(candles []types.Candle) CVDResult {
	var cum float64
	for _, c := range candles {
		rng := c.High - c.Low
		if rng <= 0 {
			continue
		}
		body := c.Close - c.Open
		sign := 0.0
		if body > 0 {
			sign = 1
		} else if body < 0 {
			sign = -1
		}
		cum += sign * c.Volume * math.Abs(body) / rng
	}

	divergence := false
	if len(candles) >= 2 {
		priceMove := candles[len(candles)-1].Close - candles[0].Close
		if priceMove > 0 && cum < 0 || priceMove < 0 && cum > 0 {
			divergence = true
		}
	}
	return CVDResult{Cumulative: cum, Divergence: divergence}
}

// AnchoredVWAP computes the VWAP anchored at the start of the window.
// It is the same calculation as VWAP but named for the anchored use case.
func AnchoredVWAP(candles []types.Candle) (float64, error) {
	return VWAP(candles)
}
