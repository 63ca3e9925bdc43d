package dbModel

import "github.com/shopspring/decimal"

type Position struct {
	PortfolioID   int64           `db:"portfolio_id"`
	Symbol        string          `db:"symbol"`
	Quantity      decimal.Decimal `db:"quantity"`
	AvgCost       decimal.Decimal `db:"avg_cost"`
	CurrentPrice  decimal.Decimal `db:"current_price"`
	MarketValue   decimal.Decimal `db:"market_value"`
	UnrealizedPnl decimal.Decimal `db:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal `db:"realized_pnl"`
	Sector        string          `db:"sector"`
}
