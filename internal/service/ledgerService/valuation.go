package ledgerService

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/shopspring/decimal"
)

// RefreshValuations re-prices every open position of the portfolio from the
// quote provider and rolls the sums up into the portfolio row. Symbols whose
// quote can't be fetched keep their last stored price and are only counted as
// skipped, so a flaky provider degrades the refresh instead of failing it.
func (s *LedgerService) RefreshValuations(ctx context.Context, portfolioID int64) (res model.ValuationResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RefreshValuations"

	slog.Debug("RefreshValuations start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("RefreshValuations failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("RefreshValuations finished", slog.String("rqID", rqID), slog.String("op", op),
				slog.Int("updated", res.UpdatedCount), slog.Int("skipped", res.SkippedCount))
		}
	}()

	if _, err = s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ValuationResult{}, service.ErrPortfolioNotFound
		}
		return model.ValuationResult{}, err
	}

	positions, err := s.repo.GetPositions(ctx, portfolioID)
	if err != nil {
		return model.ValuationResult{}, err
	}

	res = model.ValuationResult{PortfolioID: portfolioID}

	for _, position := range positions {
		quote, err := s.getQuote(ctx, position.Symbol)
		if err != nil {
			slog.Warn("skip position in RefreshValuations",
				slog.String("rqID", rqID), slog.String("op", op),
				slog.String("symbol", position.Symbol), slog.String("err", err.Error()))
			res.SkippedCount++
			continue
		}

		if err := s.repo.UpdatePositionValuation(ctx, portfolioID, position.Symbol, quote.Price); err != nil {
			return model.ValuationResult{}, err
		}

		if position.Sector == "" && quote.Sector != "" {
			if err := s.repo.UpdatePositionSector(ctx, portfolioID, position.Symbol, quote.Sector); err != nil {
				return model.ValuationResult{}, err
			}
		}

		res.UpdatedCount++
	}

	if err := s.repo.UpdatePortfolioValuation(ctx, portfolioID); err != nil {
		return model.ValuationResult{}, err
	}

	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.ValuationResult{}, err
	}

	res.CurrentValue = portfolio.CurrentValue

	positions, err = s.repo.GetPositions(ctx, portfolioID)
	if err != nil {
		return model.ValuationResult{}, err
	}
	total := decimal.Zero
	for _, position := range positions {
		total = total.Add(position.UnrealizedPnl)
	}
	res.TotalUnrealizedPnl = total

	return res, nil
}

// RefreshAllValuations runs a refresh over every portfolio. Used by the
// scheduler; an error on one portfolio doesn't stop the rest.
func (s *LedgerService) RefreshAllValuations(ctx context.Context) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RefreshAllValuations"

	slog.Info("RefreshAllValuations start", slog.String("rqID", rqID), slog.String("op", op))

	portfolioIDs, err := s.repo.GetAllPortfolioIDs(ctx)
	if err != nil {
		slog.Error("can't get portfolio ids", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return
	}

	for _, portfolioID := range portfolioIDs {
		if _, err := s.RefreshValuations(ctx, portfolioID); err != nil {
			slog.Error("portfolio refresh failed",
				slog.String("rqID", rqID), slog.String("op", op),
				slog.Int64("portfolioID", portfolioID), slog.String("err", err.Error()))
		}
	}

	slog.Info("RefreshAllValuations finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("portfolios", len(portfolioIDs)))
}
