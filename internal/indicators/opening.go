package indicators

import (
	"math"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

// OpeningType classifies how the market treated the initial balance.
type OpeningType string

const (
	OpenDrive           OpeningType = "DRIVE"
	OpenTestDrive       OpeningType = "TEST_DRIVE"
	OpenRejectionRevers OpeningType = "REJECTION_REVERSE"
	OpenAuction         OpeningType = "AUCTION"
)

// InitialBalance is the range set by the first N minutes of regular trading.
type InitialBalance struct {
	High    float64
	Low     float64
	Opening OpeningType
}

// DefaultIBDuration is the initial-balance window.
const DefaultIBDuration = 60 * time.Minute

// BuildInitialBalance derives the IB from one-minute candles, taking those
// within duration of the first candle. Returns nil when the window is empty.
func BuildInitialBalance(candles []types.Candle, duration time.Duration) *InitialBalance {
	if len(candles) == 0 {
		return nil
	}
	if duration <= 0 {
		duration = DefaultIBDuration
	}

	cutoff := candles[0].Timestamp.Add(duration)
	window := candles[:0:0]
	for _, c := range candles {
		if c.Timestamp.Before(cutoff) {
			window = append(window, c)
		}
	}
	if len(window) == 0 {
		return nil
	}

	high, low := window[0].High, window[0].Low
	for _, c := range window {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	return &InitialBalance{
		High:    high,
		Low:     low,
		Opening: classifyOpening(window, high, low),
	}
}

// classifyOpening buckets the open by where the window's open and close sit
// relative to the IB extremes, in units of IB width with a 20% threshold.
func classifyOpening(window []types.Candle, ibHigh, ibLow float64) OpeningType {
	width := ibHigh - ibLow
	if width <= 0 {
		return OpenAuction
	}
	const threshold = 0.20

	open := window[0].Open
	last := window[len(window)-1].Close

	nearLow := func(p float64) bool { return (p-ibLow)/width < threshold }
	nearHigh := func(p float64) bool { return (ibHigh-p)/width < threshold }

	touchedHigh, touchedLow := false, false
	for _, c := range window {
		if nearHigh(c.High) {
			touchedHigh = true
		}
		if nearLow(c.Low) {
			touchedLow = true
		}
	}

	switch {
	case nearLow(open) && nearHigh(last), nearHigh(open) && nearLow(last):
		return OpenDrive
	case nearLow(open) && nearLow(last), nearHigh(open) && nearHigh(last):
		return OpenRejectionRevers
	case touchedHigh && touchedLow && math.Abs(last-open)/width < threshold:
		return OpenTestDrive
	default:
		return OpenAuction
	}
}

// Breakout reports whether price has escaped the IB, and on which side.
func (ib *InitialBalance) Breakout(price float64) (above, below bool) {
	return price > ib.High, price < ib.Low
}

// ORBLevels are the breakout levels derived from the first 30 one-minute
// candles. Targets are measured in full range multiples off the broken
// extreme; both stops sit at the midpoint.
type ORBLevels struct {
	High        float64
	Low         float64
	Mid         float64
	RangeSize   float64
	BullTarget1 float64
	BullTarget2 float64
	BearTarget1 float64
	BearTarget2 float64
	LongStop    float64
	ShortStop   float64
}

// ORBCandleCount is the default number of one-minute candles the ORB needs.
const ORBCandleCount = 30

// BuildORB derives opening-range levels from one-minute candles. It requires
// at least window candles and uses exactly the first window of them;
// window <= 0 uses ORBCandleCount.
func BuildORB(candles []types.Candle, window int) *ORBLevels {
	if window <= 0 {
		window = ORBCandleCount
	}
	if len(candles) < window {
		return nil
	}
	w := candles[:window]

	high, low := w[0].High, w[0].Low
	for _, c := range w {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	if low >= high {
		return nil
	}

	r := high - low
	mid := (high + low) / 2
	return &ORBLevels{
		High:        high,
		Low:         low,
		Mid:         mid,
		RangeSize:   r,
		BullTarget1: high + r,
		BullTarget2: high + 2*r,
		BearTarget1: low - r,
		BearTarget2: low - 2*r,
		LongStop:    mid,
		ShortStop:   mid,
	}
}
