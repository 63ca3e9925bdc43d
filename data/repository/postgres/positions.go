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

func (r *Postgres) getPosition(ctx context.Context, portfolioID int64, symbol, query, op string) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("query", query), slog.Int64("portfolioID", portfolioID), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID))
		}
	}()

	dbPosition := dbModel.Position{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, portfolioID, symbol).StructScan(&dbPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, repository.ErrNotFound
		}
		return model.Position{}, err
	}

	return dbConverter.ConvertPosition(dbPosition), nil
}

func (r *Postgres) GetPosition(ctx context.Context, portfolioID int64, symbol string) (model.Position, error) {
	query := `
		SELECT portfolio_id, symbol, quantity, avg_cost, current_price, market_value, unrealized_pnl, realized_pnl, sector
		FROM positions
		WHERE portfolio_id = $1
		AND symbol = $2
		`

	return r.getPosition(ctx, portfolioID, symbol, query, "Postgres.GetPosition")
}

func (r *Postgres) GetPositionForUpdate(ctx context.Context, portfolioID int64, symbol string) (model.Position, error) {
	query := `
		SELECT portfolio_id, symbol, quantity, avg_cost, current_price, market_value, unrealized_pnl, realized_pnl, sector
		FROM positions
		WHERE portfolio_id = $1
		AND symbol = $2
		FOR UPDATE
		`

	return r.getPosition(ctx, portfolioID, symbol, query, "Postgres.GetPositionForUpdate")
}

func (r *Postgres) GetPositions(ctx context.Context, portfolioID int64) (positions []model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositions"
	query := `
		SELECT portfolio_id, symbol, quantity, avg_cost, current_price, market_value, unrealized_pnl, realized_pnl, sector
		FROM positions
		WHERE portfolio_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(position))
	}

	return positions, nil
}

func (r *Postgres) InsertPosition(ctx context.Context, position model.Position) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertPosition"
	query := `
		INSERT INTO positions(portfolio_id, symbol, quantity, avg_cost, current_price, market_value, unrealized_pnl, realized_pnl, sector)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

	slog.Debug("InsertPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("position", position))
	defer func() {
		if err != nil {
			slog.Error("InsertPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		position.PortfolioID,
		position.Symbol,
		position.Quantity,
		position.AvgCost,
		position.CurrentPrice,
		position.MarketValue,
		position.UnrealizedPnl,
		position.RealizedPnl,
		position.Sector,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return repository.ErrAlreadyExists
			}
		}
		return err
	}

	return nil
}

func (r *Postgres) UpdatePosition(ctx context.Context, position model.Position) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePosition"
	query := `
		UPDATE positions
		SET quantity = $1,
			avg_cost = $2,
			current_price = $3,
			market_value = $4,
			unrealized_pnl = $5,
			realized_pnl = $6
		WHERE portfolio_id = $7
		AND symbol = $8
		`

	slog.Debug("UpdatePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("position", position))
	defer func() {
		if err != nil {
			slog.Error("UpdatePosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		position.Quantity,
		position.AvgCost,
		position.CurrentPrice,
		position.MarketValue,
		position.UnrealizedPnl,
		position.RealizedPnl,
		position.PortfolioID,
		position.Symbol,
	)
	if err != nil {
		return err
	}

	return nil
}

// UpdatePositionValuation recomputes the derived columns from the stored
// avg_cost in a single statement, so a refresh racing an order sees either
// the old or the new average cost, never a torn one.
func (r *Postgres) UpdatePositionValuation(ctx context.Context, portfolioID int64, symbol string, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePositionValuation"
	query := `
		UPDATE positions
		SET current_price = $1,
			market_value = quantity * $1,
			unrealized_pnl = quantity * $1 - quantity * avg_cost
		WHERE portfolio_id = $2
		AND symbol = $3
		`

	slog.Debug("UpdatePositionValuation start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("UpdatePositionValuation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePositionValuation completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, price, portfolioID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) UpdatePositionSector(ctx context.Context, portfolioID int64, symbol, sector string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePositionSector"
	query := `
		UPDATE positions
		SET sector = $1
		WHERE portfolio_id = $2
		AND symbol = $3
		AND sector = ''
		`

	slog.Debug("UpdatePositionSector start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("UpdatePositionSector failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePositionSector completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, sector, portfolioID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) DeletePosition(ctx context.Context, portfolioID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePosition"
	query := `
		DELETE FROM positions
		WHERE portfolio_id = $1
		AND symbol = $2
		`

	slog.Debug("DeletePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("DeletePosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, portfolioID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) SumPositionsMarketValue(ctx context.Context, portfolioID int64) (totalMarketValue decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SumPositionsMarketValue"
	query := `
		SELECT COALESCE(SUM(market_value), 0)
		FROM positions
		WHERE portfolio_id = $1
		`

	slog.Debug("SumPositionsMarketValue start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("SumPositionsMarketValue failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SumPositionsMarketValue completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, portfolioID).Scan(&totalMarketValue)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return totalMarketValue, nil
}
