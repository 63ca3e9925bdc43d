package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID    int64           `db:"portfolio_id"`
	OwnerID        int64           `db:"owner_id"`
	Name           string          `db:"name"`
	Kind           string          `db:"kind"`
	InitialCapital decimal.Decimal `db:"initial_capital"`
	CashBalance    decimal.Decimal `db:"cash_balance"`
	CurrentValue   decimal.Decimal `db:"current_value"`
	TotalPnl       decimal.Decimal `db:"total_pnl"`
	IsDefault      bool            `db:"is_default"`
	CreatedAt      time.Time       `db:"dt_create"`
}
