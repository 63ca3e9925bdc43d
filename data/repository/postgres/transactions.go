package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_ledger/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_ledger/utils"
)

const selectTransactionColumns = `
	SELECT transaction_id, portfolio_id, symbol, type, quantity, price, commission, total_amount, dt_create
	FROM transactions
	`

func (r *Postgres) InsertTransaction(ctx context.Context, transaction model.Transaction) (t model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(portfolio_id, symbol, type, quantity, price, commission, total_amount)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING transaction_id, dt_create
		`

	slog.Debug("InsertTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("transaction", transaction))
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		transaction.PortfolioID,
		transaction.Symbol,
		string(transaction.Type),
		transaction.Quantity,
		transaction.Price,
		transaction.Commission,
		transaction.TotalAmount,
	).Scan(&transaction.TransactionID, &transaction.CreatedAt)
	if err != nil {
		return model.Transaction{}, err
	}

	return transaction, nil
}

func (r *Postgres) getTransactions(ctx context.Context, op, query string, args ...any) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("query", query), slog.Any("args", args))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var transaction dbModel.Transaction
		err = rows.StructScan(&transaction)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(transaction))
	}

	return transactions, nil
}

// GetTransactions returns the full append-only log for a portfolio, oldest
// first, so callers can replay it.
func (r *Postgres) GetTransactions(ctx context.Context, portfolioID int64) ([]model.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE portfolio_id = $1
		ORDER BY dt_create, transaction_id
		`

	return r.getTransactions(ctx, "Postgres.GetTransactions", query, portfolioID)
}

func (r *Postgres) GetTransactionsInWindow(ctx context.Context, portfolioID int64, from, to time.Time) ([]model.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE portfolio_id = $1
		AND dt_create >= $2
		AND dt_create <= $3
		ORDER BY dt_create, transaction_id
		`

	return r.getTransactions(ctx, "Postgres.GetTransactionsInWindow", query, portfolioID, from, to)
}
