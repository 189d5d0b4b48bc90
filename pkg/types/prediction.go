package types

import "time"

// Engine identifies which signal engine produced a prediction.
type Engine string

const (
	EngineTPOMIT       Engine = "TPO_MIT"
	EngineBlackScholes Engine = "BLACK_SCHOLES"
	EngineORBMomentum  Engine = "ORB_MOMENTUM"
)

// PredictionStatus is the prediction lifecycle state. A prediction moves from
// ACTIVE to exactly one terminal state and is never re-activated.
type PredictionStatus string

const (
	StatusActive  PredictionStatus = "ACTIVE"
	StatusClosed  PredictionStatus = "CLOSED"
	StatusExpired PredictionStatus = "EXPIRED"
)

// TradePlan holds entry/stop/target in option-premium terms once the risk
// projector has run; before that the fuser fills it with stock-price levels.
type TradePlan struct {
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	Target     float64 `json:"target"`
	RiskReward float64 `json:"risk_reward"`
}

// Reasoning is the tagged per-engine explanation stored with a prediction.
// Exactly one of the engine-specific blocks is set; Scores always carries the
// per-signal component scores that went into the confidence.
type Reasoning struct {
	Engine  Engine             `json:"engine"`
	Summary string             `json:"summary"`
	Scores  map[string]float64 `json:"scores,omitempty"`

	TPO *TPOReasoning `json:"tpo,omitempty"`
	BS  *BSReasoning  `json:"black_scholes,omitempty"`
	ORB *ORBReasoning `json:"orb,omitempty"`
}

// TPOReasoning records the auction-market context behind a TPO_MIT signal.
type TPOReasoning struct {
	POC       float64 `json:"poc"`
	VAH       float64 `json:"vah"`
	VAL       float64 `json:"val"`
	Bias      string  `json:"bias"`
	RSI14     float64 `json:"rsi14,omitempty"`
	IBBreak   bool    `json:"ib_breakout"`
	CVDDiverg bool    `json:"cvd_divergence"`
}

// BSReasoning records the pre-market pricing context.
type BSReasoning struct {
	Theoretical float64 `json:"theoretical"`
	IV          float64 `json:"iv"`
	Delta       float64 `json:"delta"`
	Moneyness   float64 `json:"moneyness"`
	Bias        string  `json:"bias"`
}

// ORBReasoning records the opening-range breakout context.
type ORBReasoning struct {
	RangeHigh float64 `json:"range_high"`
	RangeLow  float64 `json:"range_low"`
	Strength  float64 `json:"breakout_strength"`
}

// Prediction is the at-most-one-per-cycle directional recommendation.
type Prediction struct {
	ID          string
	Ticker      string
	Category    string
	Direction   OptionType
	Strike      float64
	EntryPrice  float64
	Confidence  float64
	Session     string
	Engine      Engine
	Reasoning   Reasoning
	Status      PredictionStatus
	Plan        TradePlan
	GeneratedAt time.Time
	ExpiresAt   *time.Time
}

// OutcomeResult is the graded terminal result of a prediction.
type OutcomeResult string

const (
	ResultWin  OutcomeResult = "WIN"
	ResultLoss OutcomeResult = "LOSS"
)

// Outcome is the one-to-one grading record for a CLOSED prediction.
type Outcome struct {
	ID           int64
	PredictionID string
	Result       OutcomeResult
	ActualPnl    float64
	ClosedAt     time.Time
}

// BacktestResult is the append-only aggregate of one replay run.
type BacktestResult struct {
	ID           int64
	Ticker       string
	StrategyName string
	TimeRange    string
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64
	MaxDrawdown  float64
	RunAt        time.Time
}
