package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/shopspring/decimal"
)

// commissionInCostBasis controls whether a BUY commission is folded into the
// position's average cost. It only ever moves cash and the recorded total
// amount; flipping this constant changes the cost-basis math everywhere,
// including the report replay.
const commissionInCostBasis = false

// ApplyOrder validates and applies one BUY/SELL against a portfolio. The
// transaction row, the position row and the portfolio row are written inside
// one database transaction; the portfolio row is locked first, so orders
// against the same portfolio serialize while different portfolios proceed in
// parallel.
func (s *LedgerService) ApplyOrder(ctx context.Context, req model.OrderRequest) (res model.OrderResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ApplyOrder"

	slog.Debug("ApplyOrder start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("req", req))
	defer func() {
		if err != nil {
			slog.Warn("ApplyOrder failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ApplyOrder finished", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	if err = validateOrder(req); err != nil {
		return model.OrderResult{}, err
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		portfolio, err := s.repo.GetPortfolioForUpdate(ctx, req.PortfolioID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrPortfolioNotFound
			}
			return err
		}

		switch req.Type {
		case model.TransactionTypeBuy:
			res, err = s.applyBuy(ctx, portfolio, req)
		case model.TransactionTypeSell:
			res, err = s.applySell(ctx, portfolio, req)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.OrderResult{}, fmt.Errorf("%w: %s", service.ErrConflict, err)
		}
		return model.OrderResult{}, err
	}

	return res, nil
}

func validateOrder(req model.OrderRequest) error {
	if req.Type != model.TransactionTypeBuy && req.Type != model.TransactionTypeSell {
		return fmt.Errorf("%w: unknown type %q", service.ErrInvalidOrderParams, req.Type)
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s must be positive", service.ErrInvalidOrderParams, req.Quantity)
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", service.ErrInvalidOrderParams, req.Price)
	}
	if req.Commission.IsNegative() {
		return fmt.Errorf("%w: commission %s must not be negative", service.ErrInvalidOrderParams, req.Commission)
	}
	return nil
}

func (s *LedgerService) applyBuy(ctx context.Context, portfolio model.Portfolio, req model.OrderRequest) (model.OrderResult, error) {
	totalAmount := req.Quantity.Mul(req.Price).Add(req.Commission)

	if portfolio.CashBalance.LessThan(totalAmount) {
		shortfall := totalAmount.Sub(portfolio.CashBalance)
		return model.OrderResult{}, fmt.Errorf("%w: need %s, have %s (short %s)",
			service.ErrInsufficientFunds, totalAmount, portfolio.CashBalance, shortfall)
	}

	position, err := s.repo.GetPositionForUpdate(ctx, req.PortfolioID, req.Symbol)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		position = model.Position{
			PortfolioID: req.PortfolioID,
			Symbol:      req.Symbol,
			Quantity:    req.Quantity,
			AvgCost:     buyCostBasis(decimal.Zero, decimal.Zero, req),
			RealizedPnl: decimal.Zero,
		}
		position.CurrentPrice = req.Price
		position.MarketValue = position.Quantity.Mul(req.Price)
		position.UnrealizedPnl = position.MarketValue.Sub(position.Quantity.Mul(position.AvgCost))

		if err := s.repo.InsertPosition(ctx, position); err != nil {
			return model.OrderResult{}, err
		}
	case err != nil:
		return model.OrderResult{}, err
	default:
		newQuantity := position.Quantity.Add(req.Quantity)
		position.AvgCost = buyCostBasis(position.Quantity, position.AvgCost, req)
		position.Quantity = newQuantity
		position.CurrentPrice = req.Price
		position.MarketValue = newQuantity.Mul(req.Price)
		position.UnrealizedPnl = position.MarketValue.Sub(newQuantity.Mul(position.AvgCost))

		if err := s.repo.UpdatePosition(ctx, position); err != nil {
			return model.OrderResult{}, err
		}
	}

	transaction, err := s.repo.InsertTransaction(ctx, model.Transaction{
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Type:        model.TransactionTypeBuy,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Commission:  req.Commission,
		TotalAmount: totalAmount,
	})
	if err != nil {
		return model.OrderResult{}, err
	}

	newCash := portfolio.CashBalance.Sub(totalAmount)
	if err := s.finalizePortfolio(ctx, portfolio, newCash); err != nil {
		return model.OrderResult{}, err
	}

	return model.OrderResult{Transaction: transaction, Position: &position}, nil
}

func (s *LedgerService) applySell(ctx context.Context, portfolio model.Portfolio, req model.OrderRequest) (model.OrderResult, error) {
	position, err := s.repo.GetPositionForUpdate(ctx, req.PortfolioID, req.Symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.OrderResult{}, fmt.Errorf("%w: no open position for %s", service.ErrPositionNotFound, req.Symbol)
		}
		return model.OrderResult{}, err
	}

	if req.Quantity.GreaterThan(position.Quantity) {
		return model.OrderResult{}, fmt.Errorf("%w: requested %s, held %s",
			service.ErrInsufficientQuantity, req.Quantity, position.Quantity)
	}

	// a sell never moves the average cost, it only locks gains in against it
	realizedGain := req.Price.Sub(position.AvgCost).Mul(req.Quantity)
	newQuantity := position.Quantity.Sub(req.Quantity)

	var resPosition *model.Position
	if newQuantity.IsZero() {
		if err := s.repo.DeletePosition(ctx, req.PortfolioID, req.Symbol); err != nil {
			return model.OrderResult{}, err
		}
	} else {
		position.Quantity = newQuantity
		position.CurrentPrice = req.Price
		position.MarketValue = newQuantity.Mul(req.Price)
		position.UnrealizedPnl = position.MarketValue.Sub(newQuantity.Mul(position.AvgCost))
		position.RealizedPnl = position.RealizedPnl.Add(realizedGain)

		if err := s.repo.UpdatePosition(ctx, position); err != nil {
			return model.OrderResult{}, err
		}
		resPosition = &position
	}

	saleAmount := req.Quantity.Mul(req.Price).Sub(req.Commission)

	transaction, err := s.repo.InsertTransaction(ctx, model.Transaction{
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Type:        model.TransactionTypeSell,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Commission:  req.Commission,
		TotalAmount: saleAmount,
	})
	if err != nil {
		return model.OrderResult{}, err
	}

	newCash := portfolio.CashBalance.Add(saleAmount)
	if err := s.finalizePortfolio(ctx, portfolio, newCash); err != nil {
		return model.OrderResult{}, err
	}

	return model.OrderResult{Transaction: transaction, Position: resPosition}, nil
}

// buyCostBasis returns the quantity-weighted average cost after a buy.
func buyCostBasis(heldQuantity, heldAvgCost decimal.Decimal, req model.OrderRequest) decimal.Decimal {
	cost := req.Quantity.Mul(req.Price)
	if commissionInCostBasis {
		cost = cost.Add(req.Commission)
	}
	newQuantity := heldQuantity.Add(req.Quantity)
	return heldQuantity.Mul(heldAvgCost).Add(cost).DivRound(newQuantity, avgCostScale)
}

// finalizePortfolio writes the new cash balance together with the recomputed
// derived totals, still inside the order's transaction.
func (s *LedgerService) finalizePortfolio(ctx context.Context, portfolio model.Portfolio, newCash decimal.Decimal) error {
	totalMarketValue, err := s.repo.SumPositionsMarketValue(ctx, portfolio.PortfolioID)
	if err != nil {
		return err
	}

	currentValue := newCash.Add(totalMarketValue)
	totalPnl := currentValue.Sub(portfolio.InitialCapital)

	return s.repo.UpdatePortfolioLedger(ctx, portfolio.PortfolioID, newCash, currentValue, totalPnl)
}
