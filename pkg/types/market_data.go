package types

import "time"

// Candle is an immutable OHLCV bar for (ticker, timestamp, interval).
type Candle struct {
	Ticker    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
	Interval  string
}

// Quote is a point-in-time bid/ask/last snapshot for a ticker.
type Quote struct {
	Ticker    string
	Bid       float64
	Ask       float64
	Last      float64
	Size      int64
	Timestamp time.Time
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// OptionContract is an append-only snapshot of a single listed option.
// IV and greeks are nil when the vendor does not supply them.
type OptionContract struct {
	Ticker       string
	Expiration   time.Time
	Strike       float64
	Type         OptionType
	Bid          float64
	Ask          float64
	IV           *float64
	Delta        *float64
	Gamma        *float64
	OpenInterest int64
	Volume       int64
	SnapshotTs   time.Time
}

// Mid returns the bid/ask midpoint, falling back to whichever side is set.
func (o OptionContract) Mid() float64 {
	if o.Bid > 0 && o.Ask > 0 {
		return (o.Bid + o.Ask) / 2
	}
	if o.Ask > 0 {
		return o.Ask
	}
	return o.Bid
}

// Candle interval identifiers accepted by the market feed.
const (
	Interval1m  = "1m"
	Interval5m  = "5m"
	Interval15m = "15m"
)
