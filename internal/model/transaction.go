package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Transaction is one executed order. Rows are append-only: the engine never
// updates or deletes them once written.
type Transaction struct {
	TransactionID int64
	PortfolioID   int64
	Symbol        string
	Type          TransactionType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Commission    decimal.Decimal
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
}
