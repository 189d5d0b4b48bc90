package indicators

import (
	"errors"
	"math"

	"github.com/tmarlen/aurora/pkg/types"
)

// ErrInsufficientData is returned when a window is too short for the
// requested indicator. Callers treat it as "no value", not a failure.
var ErrInsufficientData = errors.New("insufficient data")

// TechnicalSnapshot bundles the standard technicals for one candle window.
// Nil fields signal insufficient history for that indicator.
type TechnicalSnapshot struct {
	RSI14     *float64
	RSI5      *float64
	SMA9      *float64
	SMA20     *float64
	VWAP      *float64
	BollUpper *float64
	BollLower *float64
	ATR       *float64
}

// Snapshot computes the full technical bundle over a candle window, leaving
// nil whatever the window cannot support.
func Snapshot(candles []types.Candle) TechnicalSnapshot {
	closes := Closes(candles)
	var snap TechnicalSnapshot
	if v, err := RSI(closes, 14); err == nil {
		snap.RSI14 = &v
	}
	if v, err := RSI(closes, 5); err == nil {
		snap.RSI5 = &v
	}
	if v, err := SMA(closes, 9); err == nil {
		snap.SMA9 = &v
	}
	if v, err := SMA(closes, 20); err == nil {
		snap.SMA20 = &v
	}
	if v, err := VWAP(candles); err == nil {
		snap.VWAP = &v
	}
	if up, lo, err := Bollinger(closes, 20, 2); err == nil {
		snap.BollUpper = &up
		snap.BollLower = &lo
	}
	if v, err := ATR(candles, 14); err == nil {
		snap.ATR = &v
	}
	return snap
}

// Closes extracts the close series from a candle window.
func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RSI computes the Relative Strength Index with Wilder smoothing.
// Requires at least period+1 closes; avgLoss of zero pins the value at 100.
func RSI(closes []float64, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// SMA computes the simple moving average over the trailing period.
func SMA(values []float64, period int) (float64, error) {
	if len(values) < period || period <= 0 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA computes the exponential moving average seeded with an SMA of the
// first period values.
func EMA(values []float64, period int) (float64, error) {
	if len(values) < period || period <= 0 {
		return 0, ErrInsufficientData
	}
	seed, _ := SMA(values[:period], period)
	mult := 2.0 / (float64(period) + 1)
	ema := seed
	for _, v := range values[period:] {
		ema = (v-ema)*mult + ema
	}
	return ema, nil
}

// VWAP computes the volume-weighted average of the typical price (H+L+C)/3.
// Zero total volume yields ErrInsufficientData.
func VWAP(candles []types.Candle) (float64, error) {
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, ErrInsufficientData
	}
	return pv / vol, nil
}

// ATR computes the Average True Range with Wilder smoothing.
func ATR(candles []types.Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, ErrInsufficientData
	}

	trueRange := func(cur, prev types.Candle) float64 {
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prev.Close)
		lc := math.Abs(cur.Low - prev.Close)
		return math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(candles[i], candles[i-1])
	}
	atr /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(candles[i], candles[i-1])) / float64(period)
	}
	return atr, nil
}

// Bollinger computes upper and lower bands as SMA ± stdDevs·σ over the
// trailing period.
func Bollinger(values []float64, period int, stdDevs float64) (upper, lower float64, err error) {
	mid, err := SMA(values, period)
	if err != nil {
		return 0, 0, err
	}
	window := values[len(values)-period:]
	variance := 0.0
	for _, v := range window {
		variance += (v - mid) * (v - mid)
	}
	sigma := math.Sqrt(variance / float64(period))
	return mid + stdDevs*sigma, mid - stdDevs*sigma, nil
}
