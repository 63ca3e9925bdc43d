package model

import "github.com/shopspring/decimal"

// Position is the open holding for one symbol within a portfolio. It exists
// only while quantity > 0; a sell that drains the quantity removes the row,
// so RealizedPnl covers the period since the position was last opened.
type Position struct {
	PortfolioID   int64
	Symbol        string
	Quantity      decimal.Decimal
	AvgCost       decimal.Decimal
	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	RealizedPnl   decimal.Decimal
	Sector        string
}
