package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_ticks_total",
			Help: "Scheduler ticks by session tag",
		},
		[]string{"session"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_predictions_total",
			Help: "Predictions persisted, by ticker and engine",
		},
		[]string{"ticker", "engine"},
	)

	duplicatesSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_duplicates_suppressed_total",
			Help: "Signals dropped because the (ticker, direction, engine) slot was taken",
		},
		[]string{"ticker"},
	)

	// Grading metrics
	gradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_grades_total",
			Help: "Graded predictions by result",
		},
		[]string{"ticker", "result"},
	)

	rollingWinRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aurora_rolling_win_rate",
			Help: "Rolling win rate over the grading window",
		},
		[]string{"ticker"},
	)

	// Evolution metrics
	evolutionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_evolution_runs_total",
			Help: "Optimizer invocations by trigger outcome",
		},
		[]string{"ticker", "outcome"},
	)

	// Feed metrics
	feedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_feed_errors_total",
			Help: "Market feed calls that returned nothing usable",
		},
		[]string{"call"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aurora_last_price",
			Help: "Last observed price per ticker",
		},
		[]string{"ticker"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(predictionsTotal)
	prometheus.MustRegister(duplicatesSuppressed)
	prometheus.MustRegister(gradesTotal)
	prometheus.MustRegister(rollingWinRate)
	prometheus.MustRegister(evolutionRuns)
	prometheus.MustRegister(feedErrors)
	prometheus.MustRegister(currentPrice)
}

// RecordTick counts one scheduler tick under its session tag.
func RecordTick(session string) {
	ticksTotal.WithLabelValues(session).Inc()
}

// RecordPrediction counts one persisted prediction.
func RecordPrediction(ticker, engine string) {
	predictionsTotal.WithLabelValues(ticker, engine).Inc()
}

// RecordDuplicate counts one suppressed duplicate signal.
func RecordDuplicate(ticker string) {
	duplicatesSuppressed.WithLabelValues(ticker).Inc()
}

// RecordGrade counts one graded prediction.
func RecordGrade(ticker, result string) {
	gradesTotal.WithLabelValues(ticker, result).Inc()
}

// SetWinRate publishes the rolling win rate for a ticker.
func SetWinRate(ticker string, rate float64) {
	rollingWinRate.WithLabelValues(ticker).Set(rate)
}

// RecordEvolution counts one optimizer invocation.
func RecordEvolution(ticker, outcome string) {
	evolutionRuns.WithLabelValues(ticker, outcome).Inc()
}

// RecordFeedError counts one empty/failed feed call.
func RecordFeedError(call string) {
	feedErrors.WithLabelValues(call).Inc()
}

// SetPrice publishes the last observed price.
func SetPrice(ticker string, price float64) {
	currentPrice.WithLabelValues(ticker).Set(price)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
