package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tmarlen/aurora/pkg/types"
)

// VendorClient is the HTTP market-data adapter. Transient vendor failures
// are logged and surface as empty results so a bad cycle degrades instead of
// aborting.
type VendorClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewVendorClient builds the adapter. timeout bounds every single call;
// the limiter keeps the vendor under 10 req/s with a small burst.
func NewVendorClient(baseURL, token string, timeout time.Duration) *VendorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VendorClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

// Wire shapes. The vendor reports timestamps as unix seconds.

type wireQuote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Size   int64   `json:"size"`
	Ts     int64   `json:"ts"`
}

type wireCandle struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Ts     int64   `json:"ts"`
}

type wireOption struct {
	Expiration   string   `json:"expiration"`
	Strike       float64  `json:"strike"`
	Type         string   `json:"type"`
	Bid          float64  `json:"bid"`
	Ask          float64  `json:"ask"`
	IV           *float64 `json:"iv"`
	Delta        *float64 `json:"delta"`
	Gamma        *float64 `json:"gamma"`
	OpenInterest int64    `json:"open_interest"`
	Volume       int64    `json:"volume"`
}

func (v *VendorClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}
	u := v.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+v.token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vendor %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Quote fetches the latest quote for a single ticker, nil when unavailable.
func (v *VendorClient) Quote(ctx context.Context, ticker string) (*types.Quote, error) {
	quotes, err := v.Quotes(ctx, []string{ticker})
	if err != nil || len(quotes) == 0 {
		return nil, err
	}
	return &quotes[0], nil
}

// Quotes batch-fetches quotes. A vendor failure returns an empty slice.
func (v *VendorClient) Quotes(ctx context.Context, tickers []string) ([]types.Quote, error) {
	q := url.Values{}
	for _, t := range tickers {
		q.Add("symbol", t)
	}
	var wire []wireQuote
	if err := v.get(ctx, "/v1/quotes", q, &wire); err != nil {
		log.Printf("[Feed] quotes: %v", err)
		return nil, nil
	}
	out := make([]types.Quote, 0, len(wire))
	for _, w := range wire {
		out = append(out, types.Quote{
			Ticker:    w.Symbol,
			Bid:       w.Bid,
			Ask:       w.Ask,
			Last:      w.Last,
			Size:      w.Size,
			Timestamp: time.Unix(w.Ts, 0),
		})
	}
	return out, nil
}

// IntradayCandles returns today's candles for one session tag.
func (v *VendorClient) IntradayCandles(ctx context.Context, ticker, interval, session string) ([]types.Candle, error) {
	if session == "" {
		session = SessionRegular
	}
	q := url.Values{"symbol": {ticker}, "interval": {interval}, "session": {session}}
	var wire []wireCandle
	if err := v.get(ctx, "/v1/candles/intraday", q, &wire); err != nil {
		log.Printf("[Feed] intraday %s: %v", ticker, err)
		return nil, nil
	}
	return v.toCandles(ticker, interval, wire), nil
}

// HistoricalCandles returns candles for [start, end].
func (v *VendorClient) HistoricalCandles(ctx context.Context, ticker, interval string, start, end time.Time) ([]types.Candle, error) {
	q := url.Values{
		"symbol":   {ticker},
		"interval": {interval},
		"start":    {start.Format(time.RFC3339)},
		"end":      {end.Format(time.RFC3339)},
	}
	var wire []wireCandle
	if err := v.get(ctx, "/v1/candles/history", q, &wire); err != nil {
		log.Printf("[Feed] history %s: %v", ticker, err)
		return nil, nil
	}
	return v.toCandles(ticker, interval, wire), nil
}

// OptionExpirations lists available expirations, oldest first.
func (v *VendorClient) OptionExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	q := url.Values{"symbol": {ticker}}
	var wire []string
	if err := v.get(ctx, "/v1/options/expirations", q, &wire); err != nil {
		log.Printf("[Feed] expirations %s: %v", ticker, err)
		return nil, nil
	}
	out := make([]time.Time, 0, len(wire))
	for _, s := range wire {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// OptionChain returns the chain snapshot for one expiration.
func (v *VendorClient) OptionChain(ctx context.Context, ticker string, expiration time.Time) ([]types.OptionContract, error) {
	q := url.Values{"symbol": {ticker}, "expiration": {expiration.Format("2006-01-02")}}
	var wire []wireOption
	if err := v.get(ctx, "/v1/options/chain", q, &wire); err != nil {
		log.Printf("[Feed] chain %s: %v", ticker, err)
		return nil, nil
	}
	now := time.Now()
	out := make([]types.OptionContract, 0, len(wire))
	for _, w := range wire {
		exp, err := time.Parse("2006-01-02", w.Expiration)
		if err != nil {
			exp = expiration
		}
		optType := types.Call
		if w.Type == "PUT" || w.Type == "put" {
			optType = types.Put
		}
		out = append(out, types.OptionContract{
			Ticker:       ticker,
			Expiration:   exp,
			Strike:       w.Strike,
			Type:         optType,
			Bid:          w.Bid,
			Ask:          w.Ask,
			IV:           w.IV,
			Delta:        w.Delta,
			Gamma:        w.Gamma,
			OpenInterest: w.OpenInterest,
			Volume:       w.Volume,
			SnapshotTs:   now,
		})
	}
	return out, nil
}

func (v *VendorClient) toCandles(ticker, interval string, wire []wireCandle) []types.Candle {
	out := make([]types.Candle, 0, len(wire))
	for _, w := range wire {
		out = append(out, types.Candle{
			Ticker:    ticker,
			Open:      w.Open,
			High:      w.High,
			Low:       w.Low,
			Close:     w.Close,
			Volume:    w.Volume,
			Timestamp: time.Unix(w.Ts, 0),
			Interval:  interval,
		})
	}
	return out
}
