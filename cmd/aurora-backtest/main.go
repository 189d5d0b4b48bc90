package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/tmarlen/aurora/internal/backtest"
	"github.com/tmarlen/aurora/internal/config"
	"github.com/tmarlen/aurora/internal/parallax"
	"github.com/tmarlen/aurora/internal/store"
	"github.com/tmarlen/aurora/pkg/types"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		ticker   = flag.String("ticker", "", "Underlier to replay (required)")
		startStr = flag.String("start", "", "Window start, YYYY-MM-DD (required)")
		endStr   = flag.String("end", "", "Window end, YYYY-MM-DD (required)")
		interval = flag.String("interval", types.Interval1m, "Candle interval (1m, 5m, 15m)")
		weights  = flag.String("weights", "active", "Weight source: active (stored row) or default")
		strategy = flag.String("strategy", "TPO_MIT", "Strategy label stored with the result")
		csvPath  = flag.String("csv", "", "Write per-trade CSV to this path")
		xlsxPath = flag.String("xlsx", "", "Write XLSX report to this path")
		envFile  = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if *ticker == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(2)
	}
	start, err := time.Parse(dateLayout, *startStr)
	if err != nil {
		log.Fatalf("Bad -start: %v", err)
	}
	end, err := time.Parse(dateLayout, *endStr)
	if err != nil {
		log.Fatalf("Bad -end: %v", err)
	}
	end = end.Add(24*time.Hour - time.Second)

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No %s file, reading environment directly", *envFile)
	}
	cfg := config.Load()

	repo, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.Store.Path, err)
	}
	defer repo.Close()

	candles, err := repo.CandlesRange(*ticker, *interval, start, end)
	if err != nil {
		log.Fatalf("Failed to load candles: %v", err)
	}
	if len(candles) == 0 {
		log.Fatalf("No %s candles stored for %s in %s..%s", *interval, *ticker, *startStr, *endStr)
	}

	genes := resolveGenes(repo, *ticker, *weights)
	results := backtest.Run(*ticker, candles, genes, parallax.Config{
		TickSize:          cfg.Pipeline.TickSize,
		ValueAreaFraction: cfg.Pipeline.ValueAreaFrac,
		IBDuration:        cfg.Pipeline.IBDuration,
		ORBDuration:       cfg.Pipeline.ORBDuration,
		ATRMult:           cfg.Risk.ATRFallback,
	})

	printSummary(results, genes, len(candles))
	printTrades(results)

	if *csvPath != "" {
		if err := writeCSV(*csvPath, results); err != nil {
			log.Fatalf("CSV export: %v", err)
		}
		fmt.Printf("Trades written to %s\n", *csvPath)
	}
	if *xlsxPath != "" {
		if err := writeXLSX(*xlsxPath, results, genes); err != nil {
			log.Fatalf("XLSX export: %v", err)
		}
		fmt.Printf("Report written to %s\n", *xlsxPath)
	}

	if err := repo.InsertBacktestResult(results.ToRecord(*strategy)); err != nil {
		log.Fatalf("Failed to persist result: %v", err)
	}
	fmt.Println("Result persisted.")
}

func resolveGenes(repo *store.Store, ticker, source string) types.Genes {
	if source == "default" {
		return types.DefaultGenes()
	}
	ws, err := repo.GetActiveWeights(ticker)
	if err != nil {
		log.Fatalf("Failed to load active weights: %v", err)
	}
	if ws == nil {
		log.Printf("No active weights for %s, using defaults", ticker)
		return types.DefaultGenes()
	}
	return ws.Genes
}

func printSummary(r *backtest.Results, genes types.Genes, candleCount int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("REPLAY SUMMARY")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Ticker", r.Ticker},
		{"Window", fmt.Sprintf("%s .. %s", r.Start.Format(dateLayout), r.End.Format(dateLayout))},
		{"Candles", candleCount},
		{"Trades", r.TotalTrades},
		{"Wins / Losses", fmt.Sprintf("%d / %d", r.Wins, r.Losses)},
		{"Win rate", fmt.Sprintf("%.1f%%", r.WinRate*100)},
		{"Profit factor", fmt.Sprintf("%.2f", r.ProfitFactor)},
		{"Max drawdown", fmt.Sprintf("%.1f%%", r.MaxDrawdown*100)},
		{"Total P&L", fmt.Sprintf("%+.2f", r.TotalPnL)},
		{"Min confidence", fmt.Sprintf("%.0f", genes.MinConfidence)},
		{"Weights", fmt.Sprintf("tpo %.2f rsi %.2f ib %.2f cvd %.2f vwap %.2f",
			genes.TPO, genes.RSI, genes.IB, genes.CVD, genes.VWAP)},
	})
	t.Render()
	fmt.Println()
}

func printTrades(r *backtest.Results) {
	if len(r.Trades) == 0 {
		fmt.Println("No trades taken in this window.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Entry", "Exit", "Side", "Stock In", "Stock Out", "Premium In", "Premium Out", "P&L", "Conf"})
	for _, tr := range r.Trades {
		t.AppendRow(table.Row{
			tr.EntryTime.Format("01-02 15:04"),
			tr.ExitTime.Format("01-02 15:04"),
			tr.Direction,
			fmt.Sprintf("%.2f", tr.EntryStock),
			fmt.Sprintf("%.2f", tr.ExitStock),
			fmt.Sprintf("%.2f", tr.EntryPremium),
			fmt.Sprintf("%.2f", tr.ExitPremium),
			fmt.Sprintf("%+.2f", tr.PnL),
			fmt.Sprintf("%.0f", tr.Confidence),
		})
	}
	t.Render()
	fmt.Println()
}
