package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.PerformanceReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	sheetName := fmt.Sprintf("%s (%s)", report.PortfolioName, report.Period)
	if _, err := f.NewSheet(sheetName); err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	rowNum, err := g.fillSummary(f, sheetName, report)
	if err != nil {
		return nil, "", err
	}

	rowNum, err = g.fillPositions(f, sheetName, rowNum+2, "Top positions", "#d9ead3", report.TopPositions)
	if err != nil {
		return nil, "", err
	}

	rowNum, err = g.fillPositions(f, sheetName, rowNum+2, "Worst positions", "#f4cccc", report.WorstPositions)
	if err != nil {
		return nil, "", err
	}

	_, err = g.fillSectors(f, sheetName, rowNum+2, report.SectorAllocation)
	if err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) sectionHeader(f *excelize.File, sheetName, fromCell, toCell, title, color string) error {
	if err := f.MergeCell(sheetName, fromCell, toCell); err != nil {
		return err
	}

	f.SetCellValue(sheetName, fromCell, title)

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, fromCell, fromCell, styleID); err != nil {
		return fmt.Errorf("style apply failed: %w", err)
	}

	return nil
}

func (g *XLSXGenerator) fillSummary(f *excelize.File, sheetName string, report model.PerformanceReport) (lastRow int, err error) {
	if err := g.sectionHeader(f, sheetName, "A1", "B1", "Summary", "#cfe2f3"); err != nil {
		return 0, err
	}

	rows := []struct {
		label string
		value any
	}{
		{"window start", report.WindowStart.Format("2006-01-02 15:04:05")},
		{"window end", report.WindowEnd.Format("2006-01-02 15:04:05")},
		{"initial capital", report.Summary.InitialCapital.InexactFloat64()},
		{"current value", report.Summary.CurrentValue.InexactFloat64()},
		{"cash balance", report.Summary.CashBalance.InexactFloat64()},
		{"total invested", report.Summary.TotalInvested.InexactFloat64()},
		{"total withdrawn", report.Summary.TotalWithdrawn.InexactFloat64()},
		{"realized pnl", report.Summary.RealizedPnl.InexactFloat64()},
		{"unrealized pnl", report.Summary.UnrealizedPnl.InexactFloat64()},
		{"total pnl", report.Summary.TotalPnl.InexactFloat64()},
		{"transactions", report.Transactions.Total},
		{"buys", report.Transactions.Buys},
		{"sells", report.Transactions.Sells},
	}

	for i, row := range rows {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", i+2), row.label)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+2), row.value)
	}

	return len(rows) + 1, nil
}

func (g *XLSXGenerator) fillPositions(f *excelize.File, sheetName string, rowNum int, title, color string, positions []model.PositionPerformance) (lastRow int, err error) {
	if err := g.sectionHeader(f, sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("F%d", rowNum), title, color); err != nil {
		return 0, err
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "symbol")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "quantity")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "avg cost")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", rowNum), "market value")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", rowNum), "pnl")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", rowNum), "pnl %")

	for _, position := range positions {
		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), position.Symbol)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), position.Quantity.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), position.AvgCost.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), position.MarketValue.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), position.Pnl.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), position.PnlPercent.InexactFloat64())
	}

	return rowNum, nil
}

func (g *XLSXGenerator) fillSectors(f *excelize.File, sheetName string, rowNum int, sectors []model.SectorAllocation) (lastRow int, err error) {
	if err := g.sectionHeader(f, sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("C%d", rowNum), "Sector allocation", "#f9cb9c"); err != nil {
		return 0, err
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "sector")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "market value")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "weight %")

	for _, sector := range sectors {
		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), sector.Sector)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), sector.MarketValue.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), sector.Weight.InexactFloat64())
	}

	return rowNum, nil
}
