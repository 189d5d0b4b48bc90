package grader

import (
	"log"
	"sync"
	"time"

	"github.com/tmarlen/aurora/internal/monitoring"
	"github.com/tmarlen/aurora/internal/risk"
	"github.com/tmarlen/aurora/internal/store"
	"github.com/tmarlen/aurora/pkg/types"
)

// Repository is the slice of the store the grader needs.
type Repository interface {
	GetActivePredictions(ticker string) ([]*types.Prediction, error)
	LatestCandle(ticker string) (*types.Candle, error)
	CloseWithOutcome(predictionID string, result types.OutcomeResult, pnl float64, closedAt time.Time) error
	ExpireBefore(day time.Time) (int64, error)
	OutcomesJoined(ticker string, since time.Time) ([]store.JoinedOutcome, error)
}

// Retrainer receives the per-ticker batch win rate after each grading pass.
type Retrainer interface {
	MaybeEvolve(ticker string, currentWinRate float64)
}

// DefaultWindowDays is the rolling-statistics window.
const DefaultWindowDays = 7

// Thresholds tune the rolling statistics and the degradation alert.
type Thresholds struct {
	// WindowDays sizes the rolling win-rate and degradation windows.
	WindowDays int
	// AlertThreshold is the win-rate drop that raises the alert.
	AlertThreshold float64
	// MinGraded gates the alert on recent sample size.
	MinGraded int
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{WindowDays: DefaultWindowDays, AlertThreshold: 0.10, MinGraded: 10}
}

// Grader closes out ACTIVE predictions against the projected current premium
// and feeds batch win rates to the optimizer. It never runs concurrently with
// itself; the mutex serializes overlapping invocations.
type Grader struct {
	mu         sync.Mutex
	repo       Repository
	projector  *risk.Projector
	retrainer  Retrainer
	thresholds Thresholds
	now        func() time.Time
}

// NewGrader builds a grader. retrainer may be nil (grading without the
// evolution loop, as in backfills).
func NewGrader(repo Repository, projector *risk.Projector, retrainer Retrainer) *Grader {
	if projector == nil {
		projector = risk.NewProjector()
	}
	return &Grader{
		repo:       repo,
		projector:  projector,
		retrainer:  retrainer,
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
}

// SetThresholds overrides the rolling-statistics tuning. Non-positive fields
// keep their defaults.
func (g *Grader) SetThresholds(t Thresholds) {
	d := DefaultThresholds()
	if t.WindowDays <= 0 {
		t.WindowDays = d.WindowDays
	}
	if t.AlertThreshold <= 0 {
		t.AlertThreshold = d.AlertThreshold
	}
	if t.MinGraded <= 0 {
		t.MinGraded = d.MinGraded
	}
	g.thresholds = t
}

// GradeOpen loads every ACTIVE prediction, projects its current premium off
// the latest stored candle, and closes it as WIN or LOSS. Tickers with no
// candle yet are skipped and stay ACTIVE. After the batch, each ticker's
// batch win rate goes to the retrainer.
func (g *Grader) GradeOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()

	active, err := g.repo.GetActivePredictions("")
	if err != nil {
		log.Printf("[Grader] load active: %v", err)
		return
	}
	if len(active) == 0 {
		return
	}

	type tally struct{ graded, wins int }
	byTicker := map[string]*tally{}

	for _, p := range active {
		candle, err := g.repo.LatestCandle(p.Ticker)
		if err != nil {
			log.Printf("[Grader] %s latest candle: %v", p.Ticker, err)
			continue
		}
		if candle == nil {
			continue
		}

		premium := g.projector.CurrentPremium(p.Plan.Entry, p.EntryPrice, candle.Close, p.Direction)
		pnl := premium - p.Plan.Entry

		var result types.OutcomeResult
		switch {
		case premium >= p.Plan.Target:
			result = types.ResultWin
		case premium <= p.Plan.Stop:
			result = types.ResultLoss
		case pnl > 0:
			result = types.ResultWin
		default:
			result = types.ResultLoss
		}

		if err := g.repo.CloseWithOutcome(p.ID, result, pnl, g.now()); err != nil {
			log.Printf("[Grader] close %s: %v", p.ID, err)
			continue
		}
		monitoring.RecordGrade(p.Ticker, string(result))
		log.Printf("[Grader] %s %s %s: premium %.2f pnl %+.2f -> %s",
			p.Ticker, p.Direction, p.ID, premium, pnl, result)

		t := byTicker[p.Ticker]
		if t == nil {
			t = &tally{}
			byTicker[p.Ticker] = t
		}
		t.graded++
		if result == types.ResultWin {
			t.wins++
		}
	}

	for ticker, t := range byTicker {
		rate := float64(t.wins) / float64(t.graded)
		monitoring.SetWinRate(ticker, rate)
		if g.retrainer != nil {
			g.retrainer.MaybeEvolve(ticker, rate)
		}
	}
}

// ExpireStale marks ACTIVE predictions from before today as EXPIRED. No
// outcome rows are written for expiries.
func (g *Grader) ExpireStale(today time.Time) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	n, err := g.repo.ExpireBefore(day)
	if err != nil {
		log.Printf("[Grader] expire stale: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Grader] expired %d stale predictions", n)
	}
}

// WinRateStats summarizes graded outcomes over a window.
type WinRateStats struct {
	Graded int     `json:"graded"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Rate   float64 `json:"rate"`
}

// WinRate joins predictions to outcomes over the trailing window.
// windowDays <= 0 uses the configured rolling window.
func (g *Grader) WinRate(ticker string, windowDays int) (WinRateStats, error) {
	if windowDays <= 0 {
		windowDays = g.thresholds.WindowDays
	}
	since := g.now().AddDate(0, 0, -windowDays)
	joined, err := g.repo.OutcomesJoined(ticker, since)
	if err != nil {
		return WinRateStats{}, err
	}
	return tallyStats(joined), nil
}

// DegradationReport compares the previous week against the current one.
type DegradationReport struct {
	Previous    WinRateStats `json:"previous"`
	Recent      WinRateStats `json:"recent"`
	Degradation float64      `json:"degradation"`
	Alert       bool         `json:"alert"`
}

// Degradation measures win-rate decay between the previous window and the
// current one. Alert fires on a drop above the configured threshold with
// enough recent grades.
func (g *Grader) Degradation(ticker string) (DegradationReport, error) {
	now := g.now()
	oneWindow := now.AddDate(0, 0, -g.thresholds.WindowDays)
	twoWindows := now.AddDate(0, 0, -2*g.thresholds.WindowDays)

	joined, err := g.repo.OutcomesJoined(ticker, twoWindows)
	if err != nil {
		return DegradationReport{}, err
	}

	var prev, recent []store.JoinedOutcome
	for _, j := range joined {
		if j.Outcome.ClosedAt.Before(oneWindow) {
			prev = append(prev, j)
		} else {
			recent = append(recent, j)
		}
	}

	report := DegradationReport{
		Previous: tallyStats(prev),
		Recent:   tallyStats(recent),
	}
	report.Degradation = report.Previous.Rate - report.Recent.Rate
	report.Alert = report.Degradation > g.thresholds.AlertThreshold &&
		report.Recent.Graded >= g.thresholds.MinGraded
	return report, nil
}

func tallyStats(joined []store.JoinedOutcome) WinRateStats {
	var s WinRateStats
	for _, j := range joined {
		s.Graded++
		if j.Outcome.Result == types.ResultWin {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.Graded > 0 {
		s.Rate = float64(s.Wins) / float64(s.Graded)
	}
	return s
}
