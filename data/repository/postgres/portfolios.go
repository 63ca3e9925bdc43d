package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func (r *Postgres) InsertPortfolio(ctx context.Context, p model.Portfolio) (portfolioID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertPortfolio"
	query := `
		INSERT INTO portfolios(owner_id, name, kind, initial_capital, cash_balance, current_value, total_pnl, is_default)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING portfolio_id
		`

	slog.Debug("InsertPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		p.OwnerID,
		p.Name,
		string(p.Kind),
		p.InitialCapital,
		p.CashBalance,
		p.CurrentValue,
		p.TotalPnl,
		p.IsDefault,
	).Scan(&portfolioID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return portfolioID, nil
}

func (r *Postgres) getPortfolio(ctx context.Context, portfolioID int64, query, op string) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID))
		}
	}()

	dbPortfolio := dbModel.Portfolio{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, portfolioID).StructScan(&dbPortfolio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Portfolio{}, repository.ErrNotFound
		}
		return model.Portfolio{}, err
	}

	return dbConverter.ConvertPortfolio(dbPortfolio), nil
}

func (r *Postgres) GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	query := `
		SELECT portfolio_id, owner_id, name, kind, initial_capital, cash_balance, current_value, total_pnl, is_default, dt_create
		FROM portfolios
		WHERE portfolio_id = $1
		`

	return r.getPortfolio(ctx, portfolioID, query, "Postgres.GetPortfolio")
}

// GetPortfolioForUpdate locks the portfolio row for the rest of the enclosing
// transaction. Orders against the same portfolio serialize on this lock.
func (r *Postgres) GetPortfolioForUpdate(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	query := `
		SELECT portfolio_id, owner_id, name, kind, initial_capital, cash_balance, current_value, total_pnl, is_default, dt_create
		FROM portfolios
		WHERE portfolio_id = $1
		FOR UPDATE
		`

	return r.getPortfolio(ctx, portfolioID, query, "Postgres.GetPortfolioForUpdate")
}

func (r *Postgres) GetPortfoliosByOwner(ctx context.Context, ownerID int64) (portfolios []model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfoliosByOwner"
	query := `
		SELECT portfolio_id, owner_id, name, kind, initial_capital, cash_balance, current_value, total_pnl, is_default, dt_create
		FROM portfolios
		WHERE owner_id = $1
		ORDER BY portfolio_id
		`

	slog.Debug("GetPortfoliosByOwner start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("ownerID", ownerID))
	defer func() {
		if err != nil {
			slog.Error("GetPortfoliosByOwner failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfoliosByOwner completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var portfolio dbModel.Portfolio
		err = rows.StructScan(&portfolio)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, dbConverter.ConvertPortfolio(portfolio))
	}

	return portfolios, nil
}

func (r *Postgres) GetAllPortfolioIDs(ctx context.Context) (portfolioIDs []int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAllPortfolioIDs"
	query := `SELECT portfolio_id FROM portfolios ORDER BY portfolio_id`

	slog.Debug("GetAllPortfolioIDs start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAllPortfolioIDs failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAllPortfolioIDs completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &portfolioIDs, query)
	if err != nil {
		return nil, err
	}

	return portfolioIDs, nil
}

// UpdatePortfolioLedger writes the cash balance together with the derived
// totals. Only ApplyOrder goes through here.
func (r *Postgres) UpdatePortfolioLedger(ctx context.Context, portfolioID int64, cashBalance, currentValue, totalPnl decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePortfolioLedger"
	query := `
		UPDATE portfolios
		SET cash_balance = $1,
			current_value = $2,
			total_pnl = $3
		WHERE portfolio_id = $4
		`

	slog.Debug("UpdatePortfolioLedger start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("UpdatePortfolioLedger failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePortfolioLedger completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, cashBalance, currentValue, totalPnl, portfolioID)
	if err != nil {
		return err
	}

	return nil
}

// UpdatePortfolioValuation refreshes the derived totals from the positions
// currently on record. Cash balance stays untouched.
func (r *Postgres) UpdatePortfolioValuation(ctx context.Context, portfolioID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePortfolioValuation"
	query := `
		WITH mv AS (
			SELECT COALESCE(SUM(market_value), 0) AS total_mv
			FROM positions
			WHERE portfolio_id = $1
		)

		UPDATE portfolios p
		SET current_value = p.cash_balance + mv.total_mv,
			total_pnl = p.cash_balance + mv.total_mv - p.initial_capital
		FROM mv
		WHERE p.portfolio_id = $1
		`

	slog.Debug("UpdatePortfolioValuation start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("UpdatePortfolioValuation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePortfolioValuation completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, portfolioID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) ClearDefaultPortfolio(ctx context.Context, ownerID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ClearDefaultPortfolio"
	query := `UPDATE portfolios SET is_default = FALSE WHERE owner_id = $1 AND is_default`

	slog.Debug("ClearDefaultPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("ownerID", ownerID))
	defer func() {
		if err != nil {
			slog.Error("ClearDefaultPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ClearDefaultPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, ownerID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) SetDefaultPortfolio(ctx context.Context, portfolioID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SetDefaultPortfolio"
	query := `UPDATE portfolios SET is_default = TRUE WHERE portfolio_id = $1`

	slog.Debug("SetDefaultPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("SetDefaultPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetDefaultPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, portfolioID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) DeletePortfolio(ctx context.Context, portfolioID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePortfolio"

	// positions and transactions go with it (ON DELETE CASCADE)
	query := `
		DELETE FROM portfolios
		WHERE portfolio_id = $1
		`

	slog.Debug("DeletePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("DeletePortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, portfolioID)
	if err != nil {
		return err
	}

	return nil
}
