package quoteModel

import "github.com/shopspring/decimal"

type Quote struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	CompanyName string          `json:"companyName"`
	Sector      string          `json:"sector"`
}
