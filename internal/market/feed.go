package market

import (
	"context"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

// Candle session tags the vendor recognizes.
const (
	SessionRegular   = "regular"
	SessionPreMarket = "pre"
)

// Feed is the opaque quote/candle/chain source the pipeline reads from.
// Implementations must degrade gracefully: transient vendor failures come
// back as nil/empty results with a nil error only at the adapter's
// discretion; either way nothing thrown here may cross the scheduler
// boundary.
type Feed interface {
	// Quote returns the latest quote, or nil when none is available.
	Quote(ctx context.Context, ticker string) (*types.Quote, error)

	// Quotes batch-fetches quotes; missing tickers are simply absent.
	Quotes(ctx context.Context, tickers []string) ([]types.Quote, error)

	// IntradayCandles returns today's candles at the given interval (one of
	// types.Interval1m/5m/15m) for one session tag (SessionRegular or
	// SessionPreMarket).
	IntradayCandles(ctx context.Context, ticker, interval, session string) ([]types.Candle, error)

	// HistoricalCandles returns candles for [start, end].
	HistoricalCandles(ctx context.Context, ticker, interval string, start, end time.Time) ([]types.Candle, error)

	// OptionExpirations lists the available expiration dates.
	OptionExpirations(ctx context.Context, ticker string) ([]time.Time, error)

	// OptionChain returns the chain snapshot for one expiration, with
	// greeks when the vendor supplies them.
	OptionChain(ctx context.Context, ticker string, expiration time.Time) ([]types.OptionContract, error)
}
