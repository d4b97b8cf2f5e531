package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

type excelStyles struct {
	header   int
	currency int
	profit   int
	loss     int
}

// ExportXLSX writes the journaled day to a two-sheet workbook: a trade
// log and a summary.
func (j *Journal) ExportXLSX(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := newExcelStyles(fx)
	if err != nil {
		return err
	}
	if err := j.writeTradesSheet(fx, tradesSheet, styles); err != nil {
		return err
	}
	if err := j.writeSummarySheet(fx, summarySheet, styles); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func newExcelStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return styles, err
	}

	styles.profit, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4,
		Font:   &excelize.Font{Color: "006100"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return styles, err
	}

	styles.loss, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4,
		Font:   &excelize.Font{Color: "9C0006"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	return styles, err
}

func (j *Journal) writeTradesSheet(fx *excelize.File, sheet string, styles excelStyles) error {
	headers := []string{
		"Trade ID", "Symbol", "Side", "Entry Time", "Exit Time", "Duration",
		"Entry Price", "Exit Price", "Qty", "Exit Reason",
		"Gross P&L", "Costs", "Net P&L", "Net P&L %",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, styles.header); err != nil {
			return err
		}
	}

	for row, e := range j.Entries() {
		r := row + 2
		values := []interface{}{
			e.Trade.ID,
			e.Trade.Symbol,
			e.Trade.Side,
			e.Trade.EntryTime.Format("15:04:05"),
			e.Trade.ExitTime.Format("15:04:05"),
			e.Trade.Duration.String(),
			e.Trade.EntryPrice,
			e.Trade.ExitPrice,
			e.Trade.Quantity,
			string(e.Trade.ExitReason),
			e.Net.GrossPnl,
			e.Net.SlippageCost + e.Net.BrokerageCost,
			e.Net.NetPnl,
			e.Net.NetPnlPercent,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		pnlCell, err := excelize.CoordinatesToCellName(13, r)
		if err != nil {
			return err
		}
		style := styles.profit
		if e.Net.NetPnl < 0 {
			style = styles.loss
		}
		if err := fx.SetCellStyle(sheet, pnlCell, pnlCell, style); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "A", "N", 14)
}

func (j *Journal) writeSummarySheet(fx *excelize.File, sheet string, styles excelStyles) error {
	s := j.Summarize()

	rows := [][]interface{}{
		{"Trades", s.Trades},
		{"Wins", s.Wins},
		{"Losses", s.Losses},
		{"Win Rate %", s.WinRate},
		{"Gross P&L", s.GrossPnl},
		{"Total Costs", s.TotalCosts},
		{"Net P&L", s.NetPnl},
		{"Best Trade", s.BestTrade},
		{"Worst Trade", s.WorstTrade},
		{"Avg Duration", s.AvgDuration.String()},
	}

	for reason, count := range s.ByReason {
		rows = append(rows, []interface{}{fmt.Sprintf("Exits: %s", reason), count})
	}

	for i, row := range rows {
		labelCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, labelCell, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valueCell, row[1]); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, labelCell, labelCell, styles.header); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "A", "B", 22)
}
