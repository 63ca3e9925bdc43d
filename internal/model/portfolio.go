package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioKind string

const (
	PortfolioKindPaper PortfolioKind = "paper"
	PortfolioKindReal  PortfolioKind = "real"
)

type Portfolio struct {
	PortfolioID    int64
	OwnerID        int64
	Name           string
	Kind           PortfolioKind
	InitialCapital decimal.Decimal
	CashBalance    decimal.Decimal
	CurrentValue   decimal.Decimal
	TotalPnl       decimal.Decimal
	IsDefault      bool
	CreatedAt      time.Time
}
