package dbConverter

import (
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/model/dbModel"
)

func ConvertPortfolio(p dbModel.Portfolio) model.Portfolio {
	return model.Portfolio{
		PortfolioID:    p.PortfolioID,
		OwnerID:        p.OwnerID,
		Name:           p.Name,
		Kind:           model.PortfolioKind(p.Kind),
		InitialCapital: p.InitialCapital,
		CashBalance:    p.CashBalance,
		CurrentValue:   p.CurrentValue,
		TotalPnl:       p.TotalPnl,
		IsDefault:      p.IsDefault,
		CreatedAt:      p.CreatedAt,
	}
}

func ConvertPosition(p dbModel.Position) model.Position {
	return model.Position{
		PortfolioID:   p.PortfolioID,
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgCost:       p.AvgCost,
		CurrentPrice:  p.CurrentPrice,
		MarketValue:   p.MarketValue,
		UnrealizedPnl: p.UnrealizedPnl,
		RealizedPnl:   p.RealizedPnl,
		Sector:        p.Sector,
	}
}

func ConvertTransaction(t dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID: t.TransactionID,
		PortfolioID:   t.PortfolioID,
		Symbol:        t.Symbol,
		Type:          model.TransactionType(t.Type),
		Quantity:      t.Quantity,
		Price:         t.Price,
		Commission:    t.Commission,
		TotalAmount:   t.TotalAmount,
		CreatedAt:     t.CreatedAt,
	}
}
