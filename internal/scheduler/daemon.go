package scheduler

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tmarlen/aurora/internal/calendar"
	"github.com/tmarlen/aurora/internal/grader"
	"github.com/tmarlen/aurora/internal/market"
	"github.com/tmarlen/aurora/internal/monitoring"
	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/pkg/types"
)

// Repository is the slice of the store the daemon writes during a tick.
type Repository interface {
	InsertQuote(q types.Quote) error
	InsertCandles(candles []types.Candle) error
	InsertOptionSnapshots(contracts []types.OptionContract) error
	InsertPrediction(p *types.Prediction) error
	ActiveExists(ticker string, direction types.OptionType, engine types.Engine) (bool, error)
}

// candleTail bounds how many intraday candles one tick persists. The upsert
// keying makes re-persisting overlap harmless.
const candleTail = 120

// DefaultTickInterval is the pipeline cadence.
const DefaultTickInterval = 30 * time.Second

// Options wires the daemon's collaborators.
type Options struct {
	Calendar     *calendar.Calendar
	Feed         market.Feed
	Repo         Repository
	Fuser        *parallax.Fuser
	Projector    *risk.Projector
	Grader       *grader.Grader
	Health       *monitoring.HealthChecker
	TickInterval time.Duration
	Primary      string
	FridayOnly   []string
}

// Daemon is the fixed-cadence pipeline loop. One per process; Start is
// idempotent and Stop drains the in-flight tick.
type Daemon struct {
	opts Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	tickCount int
}

// New builds a daemon. TickInterval <= 0 uses the 30 s default.
func New(opts Options) *Daemon {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Projector == nil {
		opts.Projector = risk.NewProjector()
	}
	return &Daemon{opts: opts}
}

// Start brings the loop up. Calling it on a running daemon is a no-op.
// Before the first tick, stale ACTIVE predictions from previous days are
// expired.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	today := time.Now().In(d.opts.Calendar.Location())
	d.opts.Grader.ExpireStale(today)

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.run(ctx)
	log.Printf("[Scheduler] started, tick interval %s", d.opts.TickInterval)
	return nil
}

// Stop cancels the timer and waits for any in-flight tick to drain.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done
	log.Printf("[Scheduler] stopped")
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.opts.TickInterval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs one full pipeline cycle. No error crosses this boundary: every
// failure is logged and the affected unit is skipped.
func (d *Daemon) tick(ctx context.Context) {
	d.tickCount++
	session := d.opts.Calendar.Session()
	monitoring.RecordTick(string(session))
	if d.opts.Health != nil {
		d.opts.Health.SetTick(string(session))
	}

	if session.IsClosed() {
		log.Printf("[Scheduler] session %s, skipping tick", session)
		return
	}

	tickers := d.activeTickers()
	quotes, err := d.opts.Feed.Quotes(ctx, tickers)
	if err != nil {
		log.Printf("[Scheduler] batch quotes: %v", err)
		monitoring.RecordFeedError("quotes")
		return
	}
	byTicker := make(map[string]types.Quote, len(quotes))
	for _, q := range quotes {
		byTicker[q.Ticker] = q
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ticker := range tickers {
		ticker := ticker
		quote, ok := byTicker[ticker]
		if !ok || quote.Last <= 0 {
			continue
		}
		g.Go(func() error {
			d.runTicker(gctx, ticker, quote, session)
			return nil
		})
	}
	g.Wait()

	// grading rides the same loop at a one-minute cadence
	if d.tickCount%d.gradeEvery() == 0 {
		d.opts.Grader.GradeOpen()
	}
}

func (d *Daemon) gradeEvery() int {
	n := int(time.Minute / d.opts.TickInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// activeTickers resolves the underlier list: the primary always, the
// Friday-only set when the calendar says so.
func (d *Daemon) activeTickers() []string {
	tickers := []string{d.opts.Primary}
	if d.opts.Calendar.IsFriday() {
		tickers = append(tickers, d.opts.FridayOnly...)
	}
	return tickers
}

// runTicker handles one underlier's cycle: persist the quote, refresh the
// candle tail, evaluate the fuser, and persist an accepted prediction with
// its contract trade plan.
func (d *Daemon) runTicker(ctx context.Context, ticker string, quote types.Quote, session calendar.Session) {
	if err := d.opts.Repo.InsertQuote(quote); err != nil {
		log.Printf("[Scheduler] %s persist quote: %v", ticker, err)
	}
	monitoring.SetPrice(ticker, quote.Last)

	var candles []types.Candle
	if session.IsTrading() || session == calendar.SessionPreMarket {
		candleSession := market.SessionRegular
		if session == calendar.SessionPreMarket {
			candleSession = market.SessionPreMarket
		}
		fetched, err := d.opts.Feed.IntradayCandles(ctx, ticker, types.Interval1m, candleSession)
		if err != nil {
			log.Printf("[Scheduler] %s intraday candles: %v", ticker, err)
			monitoring.RecordFeedError("intraday")
			return
		}
		candles = fetched
		if len(candles) > 0 {
			tail := candles
			if len(tail) > candleTail {
				tail = tail[len(tail)-candleTail:]
			}
			if err := d.opts.Repo.InsertCandles(tail); err != nil {
				log.Printf("[Scheduler] %s persist candles: %v", ticker, err)
			}
		}
	}

	// pre-market pulls the chain up front so the engine sees the ATM vol
	var snap *chainSnapshot
	var iv float64
	if session == calendar.SessionPreMarket {
		s, err := d.fetchChain(ctx, ticker)
		if err != nil {
			log.Printf("[Scheduler] %s pre-market chain: %v", ticker, err)
		} else {
			snap = s
			iv = atmIV(snap.contracts, quote.Last)
		}
	}

	sig := d.opts.Fuser.Evaluate(parallax.Input{
		Ticker:  ticker,
		Session: session,
		Candles: candles,
		Price:   quote.Last,
		IV:      iv,
	})
	if sig == nil {
		return
	}

	taken, err := d.opts.Repo.ActiveExists(ticker, sig.Direction, sig.Engine)
	if err != nil {
		log.Printf("[Scheduler] %s duplicate check: %v", ticker, err)
		return
	}
	if taken {
		log.Printf("[Scheduler] %s: %s %s already active, suppressing", ticker, sig.Direction, sig.Engine)
		monitoring.RecordDuplicate(ticker)
		return
	}

	if snap == nil {
		snap, err = d.fetchChain(ctx, ticker)
		if err != nil {
			log.Printf("[Scheduler] %s option chain: %v", ticker, err)
			return
		}
	}
	pred, err := d.buildPrediction(ticker, quote, session, sig, snap)
	if err != nil {
		log.Printf("[Scheduler] %s build prediction: %v", ticker, err)
		return
	}
	if err := d.opts.Repo.InsertPrediction(pred); err != nil {
		log.Printf("[Scheduler] %s persist prediction: %v", ticker, err)
		return
	}
	monitoring.RecordPrediction(ticker, string(sig.Engine))
	log.Printf("[Scheduler] %s: %s %s strike %.1f confidence %.0f entry %.2f stop %.2f target %.2f",
		ticker, sig.Engine, sig.Direction, sig.Strike, sig.Confidence,
		pred.Plan.Entry, pred.Plan.Stop, pred.Plan.Target)
}

// chainSnapshot is one fetched option chain and its expiration date.
type chainSnapshot struct {
	expiration time.Time
	contracts  []types.OptionContract
}

// fetchChain resolves the same-day expiration, fetches the chain, and
// persists the snapshot rows.
func (d *Daemon) fetchChain(ctx context.Context, ticker string) (*chainSnapshot, error) {
	expiration, err := d.nearestExpiration(ctx, ticker)
	if err != nil {
		return nil, err
	}

	chain, err := d.opts.Feed.OptionChain(ctx, ticker, expiration)
	if err != nil {
		monitoring.RecordFeedError("chain")
		return nil, fmt.Errorf("option chain: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("empty chain for %s %s", ticker, expiration.Format("2006-01-02"))
	}
	if err := d.opts.Repo.InsertOptionSnapshots(chain); err != nil {
		log.Printf("[Scheduler] %s persist chain: %v", ticker, err)
	}
	return &chainSnapshot{expiration: expiration, contracts: chain}, nil
}

// buildPrediction overlays the contract-premium plan on the engine's stock
// levels using an already-fetched chain snapshot.
func (d *Daemon) buildPrediction(ticker string, quote types.Quote, session calendar.Session, sig *parallax.Signal, snap *chainSnapshot) (*types.Prediction, error) {
	contract := closestContract(snap.contracts, sig.Direction, sig.Strike)
	if contract == nil {
		return nil, fmt.Errorf("no %s contracts near strike %.1f", sig.Direction, sig.Strike)
	}

	mid := contract.Mid()
	if mid <= 0 {
		return nil, fmt.Errorf("contract %s %.1f has no quote", sig.Direction, contract.Strike)
	}
	plan := d.opts.Projector.Project(mid, sig.Levels, contract.Delta)

	loc := d.opts.Calendar.Location()
	exp := snap.expiration
	expiresAt := time.Date(exp.Year(), exp.Month(), exp.Day(), 16, 0, 0, 0, loc)

	return &types.Prediction{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		Category:    "0DTE",
		Direction:   sig.Direction,
		Strike:      contract.Strike,
		EntryPrice:  quote.Last,
		Confidence:  sig.Confidence,
		Session:     string(session),
		Engine:      sig.Engine,
		Reasoning:   sig.Reasoning,
		Status:      types.StatusActive,
		Plan:        plan,
		GeneratedAt: time.Now(),
		ExpiresAt:   &expiresAt,
	}, nil
}

// nearestExpiration picks the first expiration on or after today, which is
// the same-day contract on dailies.
func (d *Daemon) nearestExpiration(ctx context.Context, ticker string) (time.Time, error) {
	expirations, err := d.opts.Feed.OptionExpirations(ctx, ticker)
	if err != nil {
		monitoring.RecordFeedError("expirations")
		return time.Time{}, fmt.Errorf("expirations: %w", err)
	}
	if len(expirations) == 0 {
		return time.Time{}, fmt.Errorf("no expirations for %s", ticker)
	}

	loc := d.opts.Calendar.Location()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for _, exp := range expirations {
		if !exp.Before(today) {
			return exp, nil
		}
	}
	return expirations[len(expirations)-1], nil
}

// closestContract returns the chain row of the right type nearest the target
// strike, or nil when the chain has no contracts of that type.
func closestContract(chain []types.OptionContract, direction types.OptionType, strike float64) *types.OptionContract {
	var best *types.OptionContract
	bestDist := math.MaxFloat64
	for i := range chain {
		c := &chain[i]
		if c.Type != direction {
			continue
		}
		dist := math.Abs(c.Strike - strike)
		if dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	return best
}

// atmIV averages the implied vols quoted at the strike nearest the money.
// Zero when the chain carries no vols.
func atmIV(chain []types.OptionContract, price float64) float64 {
	bestDist := math.MaxFloat64
	var sum float64
	var n int
	for i := range chain {
		c := &chain[i]
		if c.IV == nil || *c.IV <= 0 {
			continue
		}
		dist := math.Abs(c.Strike - price)
		switch {
		case dist < bestDist:
			bestDist, sum, n = dist, *c.IV, 1
		case dist == bestDist:
			sum += *c.IV
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
