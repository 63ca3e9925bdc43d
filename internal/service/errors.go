package service

import "errors"

var (
	ErrPortfolioNotFound      = errors.New("error portfolio not found")
	ErrPositionNotFound       = errors.New("error position not found")
	ErrInsufficientFunds      = errors.New("error insufficient funds")
	ErrInsufficientQuantity   = errors.New("error insufficient quantity")
	ErrInvalidOrderParams     = errors.New("error invalid order parameters")
	ErrInvalidPeriod          = errors.New("error invalid report period")
	ErrAlreadyExists          = errors.New("error already exists")
	ErrDefaultPortfolioDelete = errors.New("error default portfolio can't be deleted")
	// ErrConflict means a concurrent write touched the same portfolio and the
	// whole call was rolled back. Safe to retry.
	ErrConflict = errors.New("error concurrent write conflict")
)
