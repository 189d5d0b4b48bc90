package types

import "time"

// Genes is the fuser weight vector, versioned per ticker. The five component
// weights are kept non-negative and normalized to sum 1; the optimizer treats
// the whole struct as one genome.
type Genes struct {
	TPO  float64 `json:"tpo"`
	RSI  float64 `json:"rsi"`
	IB   float64 `json:"ib"`
	CVD  float64 `json:"cvd"`
	VWAP float64 `json:"vwap"`

	MinConfidence   float64 `json:"min_confidence"`
	ORBBreakoutMult float64 `json:"orb_breakout_mult"`
	StopLossMult    float64 `json:"stop_loss_mult"`
	TargetMult      float64 `json:"target_mult"`
}

// DefaultGenes is the documented fallback used whenever no active row exists
// for a ticker, or an active row fails to decode.
func DefaultGenes() Genes {
	return Genes{
		TPO:             0.30,
		RSI:             0.20,
		IB:              0.20,
		CVD:             0.10,
		VWAP:            0.20,
		MinConfidence:   60,
		ORBBreakoutMult: 1.0,
		StopLossMult:    0.5,
		TargetMult:      2.0,
	}
}

// Normalize rescales the five component weights so they sum to 1.
// A degenerate all-zero vector resets to the defaults.
func (g *Genes) Normalize() {
	sum := g.TPO + g.RSI + g.IB + g.CVD + g.VWAP
	if sum <= 0 {
		d := DefaultGenes()
		g.TPO, g.RSI, g.IB, g.CVD, g.VWAP = d.TPO, d.RSI, d.IB, d.CVD, d.VWAP
		return
	}
	g.TPO /= sum
	g.RSI /= sum
	g.IB /= sum
	g.CVD /= sum
	g.VWAP /= sum
}

// ComponentSum reports the current sum of the five component weights.
func (g Genes) ComponentSum() float64 {
	return g.TPO + g.RSI + g.IB + g.CVD + g.VWAP
}

// WeightSet is one persisted weights row; at most one is active per ticker.
type WeightSet struct {
	ID          int64
	Ticker      string
	Genes       Genes
	WinRate     float64
	IsActive    bool
	LastUpdated time.Time
}

// ParameterDelta is the append-only audit trail of weight changes.
type ParameterDelta struct {
	ID        int64
	WeightsID int64
	OldGenes  Genes
	NewGenes  Genes
	Reason    string
	At        time.Time
}
