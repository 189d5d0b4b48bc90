package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/tmarlen/aurora/internal/backtest"
	"github.com/tmarlen/aurora/pkg/types"
)

const tsLayout = "2006-01-02 15:04:05"

// writeCSV emits one row per trade.
func writeCSV(path string, r *backtest.Results) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"entry_time", "exit_time", "direction", "entry_stock", "exit_stock",
		"entry_premium", "exit_premium", "pnl", "confidence",
	}); err != nil {
		return err
	}
	for _, tr := range r.Trades {
		if err := w.Write([]string{
			tr.EntryTime.Format(tsLayout),
			tr.ExitTime.Format(tsLayout),
			string(tr.Direction),
			fmt.Sprintf("%.4f", tr.EntryStock),
			fmt.Sprintf("%.4f", tr.ExitStock),
			fmt.Sprintf("%.4f", tr.EntryPremium),
			fmt.Sprintf("%.4f", tr.ExitPremium),
			fmt.Sprintf("%.4f", tr.PnL),
			fmt.Sprintf("%.1f", tr.Confidence),
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeXLSX builds a two-sheet workbook: the aggregate summary and the
// per-trade detail.
func writeXLSX(path string, r *backtest.Results, genes types.Genes) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const tradesSheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	fx.NewSheet(tradesSheet)

	summary := [][]interface{}{
		{"Ticker", r.Ticker},
		{"Window start", r.Start.Format(tsLayout)},
		{"Window end", r.End.Format(tsLayout)},
		{"Total trades", r.TotalTrades},
		{"Wins", r.Wins},
		{"Losses", r.Losses},
		{"Win rate", r.WinRate},
		{"Profit factor", r.ProfitFactor},
		{"Max drawdown", r.MaxDrawdown},
		{"Total P&L", r.TotalPnL},
		{"Weight TPO", genes.TPO},
		{"Weight RSI", genes.RSI},
		{"Weight IB", genes.IB},
		{"Weight CVD", genes.CVD},
		{"Weight VWAP", genes.VWAP},
		{"Min confidence", genes.MinConfidence},
	}
	for i, row := range summary {
		fx.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		fx.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	headers := []string{"Entry Time", "Exit Time", "Direction", "Entry Stock",
		"Exit Stock", "Entry Premium", "Exit Premium", "P&L", "Confidence"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(tradesSheet, cell, h)
	}
	for row, tr := range r.Trades {
		values := []interface{}{
			tr.EntryTime.Format(tsLayout),
			tr.ExitTime.Format(tsLayout),
			string(tr.Direction),
			tr.EntryStock,
			tr.ExitStock,
			tr.EntryPremium,
			tr.ExitPremium,
			tr.PnL,
			tr.Confidence,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			fx.SetCellValue(tradesSheet, cell, v)
		}
	}

	return fx.SaveAs(path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
