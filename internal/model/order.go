package model

import "github.com/shopspring/decimal"

type OrderRequest struct {
	PortfolioID int64
	Symbol      string
	Type        TransactionType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Commission  decimal.Decimal
}

// OrderResult is returned on a successfully applied order. Position is nil
// when the order closed the position entirely.
type OrderResult struct {
	Transaction Transaction
	Position    *Position
}

// ValuationResult summarizes one valuation refresh pass over a portfolio.
type ValuationResult struct {
	PortfolioID        int64
	UpdatedCount       int
	SkippedCount       int
	CurrentValue       decimal.Decimal
	TotalUnrealizedPnl decimal.Decimal
}
