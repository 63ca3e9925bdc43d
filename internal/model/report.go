package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	Period1D  Period = "1D"
	Period1W  Period = "1W"
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	Period6M  Period = "6M"
	Period1Y  Period = "1Y"
	PeriodYTD Period = "YTD"
	PeriodAll Period = "ALL"
)

func (p Period) Valid() bool {
	switch p {
	case Period1D, Period1W, Period1M, Period3M, Period6M, Period1Y, PeriodYTD, PeriodAll:
		return true
	}
	return false
}

type ReportSummary struct {
	InitialCapital decimal.Decimal
	CurrentValue   decimal.Decimal
	CashBalance    decimal.Decimal
	TotalInvested  decimal.Decimal
	TotalWithdrawn decimal.Decimal
	RealizedPnl    decimal.Decimal
	UnrealizedPnl  decimal.Decimal
	TotalPnl       decimal.Decimal
}

type PositionPerformance struct {
	Symbol      string
	Quantity    decimal.Decimal
	AvgCost     decimal.Decimal
	MarketValue decimal.Decimal
	Pnl         decimal.Decimal
	PnlPercent  decimal.Decimal
}

type SectorAllocation struct {
	Sector      string
	MarketValue decimal.Decimal
	Weight      decimal.Decimal
}

type TransactionCounts struct {
	Total int
	Buys  int
	Sells int
}

type PerformanceReport struct {
	PortfolioID      int64
	PortfolioName    string
	Period           Period
	WindowStart      time.Time
	WindowEnd        time.Time
	GeneratedAt      time.Time
	Summary          ReportSummary
	TopPositions     []PositionPerformance
	WorstPositions   []PositionPerformance
	SectorAllocation []SectorAllocation
	Transactions     TransactionCounts
}
