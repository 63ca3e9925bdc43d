package ledgerService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/shopspring/decimal"
)

const rankedPositionsLimit = 5

// PerformanceReport assembles the report for one portfolio over the period.
// Realized P&L comes from replaying the full transaction log, so gains on
// positions that were closed (and whose rows are gone) still show up.
func (s *LedgerService) PerformanceReport(ctx context.Context, portfolioID int64, period model.Period) (report model.PerformanceReport, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.PerformanceReport"

	slog.Debug("PerformanceReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID), slog.String("period", string(period)))
	defer func() {
		if err != nil {
			slog.Error("PerformanceReport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("PerformanceReport finished", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	if !period.Valid() {
		return model.PerformanceReport{}, fmt.Errorf("%w: %q", service.ErrInvalidPeriod, period)
	}

	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PerformanceReport{}, service.ErrPortfolioNotFound
		}
		return model.PerformanceReport{}, err
	}

	now := time.Now()
	windowStart := periodWindowStart(period, now, portfolio.CreatedAt)

	windowTransactions, err := s.repo.GetTransactionsInWindow(ctx, portfolioID, windowStart, now)
	if err != nil {
		return model.PerformanceReport{}, err
	}

	allTransactions, err := s.repo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.PerformanceReport{}, err
	}

	positions, err := s.repo.GetPositions(ctx, portfolioID)
	if err != nil {
		return model.PerformanceReport{}, err
	}

	invested, withdrawn := decimal.Zero, decimal.Zero
	counts := model.TransactionCounts{Total: len(windowTransactions)}
	for _, transaction := range windowTransactions {
		switch transaction.Type {
		case model.TransactionTypeBuy:
			invested = invested.Add(transaction.TotalAmount)
			counts.Buys++
		case model.TransactionTypeSell:
			withdrawn = withdrawn.Add(transaction.TotalAmount)
			counts.Sells++
		}
	}

	realizedBySymbol := replayRealizedPnl(allTransactions)
	realizedTotal := decimal.Zero
	for _, pnl := range realizedBySymbol {
		realizedTotal = realizedTotal.Add(pnl)
	}

	unrealizedTotal := decimal.Zero
	totalMarketValue := decimal.Zero
	for _, position := range positions {
		unrealizedTotal = unrealizedTotal.Add(position.UnrealizedPnl)
		totalMarketValue = totalMarketValue.Add(position.MarketValue)
	}

	report = model.PerformanceReport{
		PortfolioID:   portfolioID,
		PortfolioName: portfolio.Name,
		Period:        period,
		WindowStart:   windowStart,
		WindowEnd:     now,
		GeneratedAt:   now,
		Summary: model.ReportSummary{
			InitialCapital: portfolio.InitialCapital,
			CurrentValue:   portfolio.CurrentValue,
			CashBalance:    portfolio.CashBalance,
			TotalInvested:  invested,
			TotalWithdrawn: withdrawn,
			RealizedPnl:    realizedTotal,
			UnrealizedPnl:  unrealizedTotal,
			TotalPnl:       portfolio.TotalPnl,
		},
		Transactions: counts,
	}

	ranked := rankPositions(positions, realizedBySymbol)
	if len(ranked) > rankedPositionsLimit {
		report.TopPositions = ranked[:rankedPositionsLimit]
	} else {
		report.TopPositions = ranked
	}
	worst := make([]model.PositionPerformance, len(ranked))
	copy(worst, ranked)
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].PnlPercent.LessThan(worst[j].PnlPercent) })
	if len(worst) > rankedPositionsLimit {
		worst = worst[:rankedPositionsLimit]
	}
	report.WorstPositions = worst

	report.SectorAllocation = sectorAllocation(positions, totalMarketValue)

	return report, nil
}

// ExportPerformanceReport renders the report to a file and pushes it to cloud
// storage, returning the download link.
func (s *LedgerService) ExportPerformanceReport(ctx context.Context, portfolioID int64, period model.Period) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ExportPerformanceReport"

	slog.Debug("ExportPerformanceReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("ExportPerformanceReport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ExportPerformanceReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("link", downloadLink))
		}
	}()

	report, err := s.PerformanceReport(ctx, portfolioID, period)
	if err != nil {
		return "", err
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, report)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s_%s%s", report.PortfolioName, period, report.GeneratedAt.Format("2006-01-02_15-04-05"), fileExtension)

	return s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
}

func periodWindowStart(period model.Period, now, portfolioCreatedAt time.Time) time.Time {
	switch period {
	case model.Period1D:
		return now.AddDate(0, 0, -1)
	case model.Period1W:
		return now.AddDate(0, 0, -7)
	case model.Period1M:
		return now.AddDate(0, -1, 0)
	case model.Period3M:
		return now.AddDate(0, -3, 0)
	case model.Period6M:
		return now.AddDate(0, -6, 0)
	case model.Period1Y:
		return now.AddDate(-1, 0, 0)
	case model.PeriodYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return portfolioCreatedAt
	}
}

// replayRealizedPnl walks the full transaction log in order, rebuilding the
// average-cost accumulator per symbol and collecting realized gains on sells.
// Commissions stay out of the cost basis (see commissionInCostBasis), mirroring
// what the order path does live.
func replayRealizedPnl(transactions []model.Transaction) map[string]decimal.Decimal {
	type lot struct {
		quantity decimal.Decimal
		avgCost  decimal.Decimal
	}
	lots := make(map[string]lot)
	realized := make(map[string]decimal.Decimal)

	for _, transaction := range transactions {
		held := lots[transaction.Symbol]
		switch transaction.Type {
		case model.TransactionTypeBuy:
			held.avgCost = buyCostBasis(held.quantity, held.avgCost, model.OrderRequest{
				Quantity:   transaction.Quantity,
				Price:      transaction.Price,
				Commission: transaction.Commission,
			})
			held.quantity = held.quantity.Add(transaction.Quantity)
			lots[transaction.Symbol] = held
		case model.TransactionTypeSell:
			gain := transaction.Price.Sub(held.avgCost).Mul(transaction.Quantity)
			realized[transaction.Symbol] = realized[transaction.Symbol].Add(gain)
			held.quantity = held.quantity.Sub(transaction.Quantity)
			if held.quantity.IsZero() {
				held.avgCost = decimal.Zero
			}
			lots[transaction.Symbol] = held
		}
	}

	return realized
}

// rankPositions returns open positions sorted best-first by combined P&L
// percent over the cost basis.
func rankPositions(positions []model.Position, realizedBySymbol map[string]decimal.Decimal) []model.PositionPerformance {
	ranked := make([]model.PositionPerformance, 0, len(positions))
	for _, position := range positions {
		pnl := position.UnrealizedPnl.Add(realizedBySymbol[position.Symbol])
		costBasis := position.Quantity.Mul(position.AvgCost)

		pnlPercent := decimal.Zero
		if costBasis.IsPositive() {
			pnlPercent = pnl.Div(costBasis).Mul(decimal.NewFromInt(100)).Round(2)
		}

		ranked = append(ranked, model.PositionPerformance{
			Symbol:      position.Symbol,
			Quantity:    position.Quantity,
			AvgCost:     position.AvgCost,
			MarketValue: position.MarketValue,
			Pnl:         pnl,
			PnlPercent:  pnlPercent,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].PnlPercent.GreaterThan(ranked[j].PnlPercent) })

	return ranked
}

func sectorAllocation(positions []model.Position, totalMarketValue decimal.Decimal) []model.SectorAllocation {
	bySector := make(map[string]decimal.Decimal)
	for _, position := range positions {
		sector := position.Sector
		if sector == "" {
			sector = "Unknown"
		}
		bySector[sector] = bySector[sector].Add(position.MarketValue)
	}

	allocation := make([]model.SectorAllocation, 0, len(bySector))
	for sector, marketValue := range bySector {
		weight := decimal.Zero
		if totalMarketValue.IsPositive() {
			weight = marketValue.Div(totalMarketValue).Mul(decimal.NewFromInt(100)).Round(2)
		}
		allocation = append(allocation, model.SectorAllocation{
			Sector:      sector,
			MarketValue: marketValue,
			Weight:      weight,
		})
	}

	sort.Slice(allocation, func(i, j int) bool { return allocation[i].MarketValue.GreaterThan(allocation[j].MarketValue) })

	return allocation
}
