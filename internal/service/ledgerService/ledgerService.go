package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_ledger/config"
	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/model/quoteModel"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/shopspring/decimal"
)

// avgCostScale is the decimal scale avg cost is rounded to, matching the
// NUMERIC(24,8) storage.
const avgCostScale = 8

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]quoteModel.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	SetQuote(ctx context.Context, quote quoteModel.Quote) error
	SetQuotes(ctx context.Context, quotes []quoteModel.Quote) error
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertPortfolio(ctx context.Context, portfolio model.Portfolio) (portfolioID int64, err error)
	GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	GetPortfolioForUpdate(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	GetPortfoliosByOwner(ctx context.Context, ownerID int64) ([]model.Portfolio, error)
	GetAllPortfolioIDs(ctx context.Context) ([]int64, error)
	UpdatePortfolioLedger(ctx context.Context, portfolioID int64, cashBalance, currentValue, totalPnl decimal.Decimal) error
	UpdatePortfolioValuation(ctx context.Context, portfolioID int64) error
	ClearDefaultPortfolio(ctx context.Context, ownerID int64) error
	SetDefaultPortfolio(ctx context.Context, portfolioID int64) error
	DeletePortfolio(ctx context.Context, portfolioID int64) error

	GetPosition(ctx context.Context, portfolioID int64, symbol string) (model.Position, error)
	GetPositionForUpdate(ctx context.Context, portfolioID int64, symbol string) (model.Position, error)
	GetPositions(ctx context.Context, portfolioID int64) ([]model.Position, error)
	InsertPosition(ctx context.Context, position model.Position) error
	UpdatePosition(ctx context.Context, position model.Position) error
	UpdatePositionValuation(ctx context.Context, portfolioID int64, symbol string, price decimal.Decimal) error
	UpdatePositionSector(ctx context.Context, portfolioID int64, symbol, sector string) error
	DeletePosition(ctx context.Context, portfolioID int64, symbol string) error
	SumPositionsMarketValue(ctx context.Context, portfolioID int64) (decimal.Decimal, error)

	InsertTransaction(ctx context.Context, transaction model.Transaction) (model.Transaction, error)
	GetTransactions(ctx context.Context, portfolioID int64) ([]model.Transaction, error)
	GetTransactionsInWindow(ctx context.Context, portfolioID int64, from, to time.Time) ([]model.Transaction, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PerformanceReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type LedgerService struct {
	cfg             *config.Config
	repo            Repository
	cache           Cache
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
}

func New(cfg *config.Config, repo Repository, cache Cache, quoteApi QuoteApi, reportGenerator ReportGenerator, cloudStorage CloudStorage) *LedgerService {
	return &LedgerService{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
	}
}

func (s *LedgerService) CreatePortfolio(ctx context.Context, ownerID int64, name string, kind model.PortfolioKind, initialCapital decimal.Decimal) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.CreatePortfolio"

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("ownerID", ownerID), slog.String("name", name))
	defer func() {
		slog.Debug("CreatePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("ownerID", ownerID), slog.String("name", name))
	}()

	if name == "" {
		return model.Portfolio{}, fmt.Errorf("%w: empty name", service.ErrInvalidOrderParams)
	}
	if kind != model.PortfolioKindPaper && kind != model.PortfolioKindReal {
		return model.Portfolio{}, fmt.Errorf("%w: unknown kind %q", service.ErrInvalidOrderParams, kind)
	}
	if initialCapital.IsNegative() {
		return model.Portfolio{}, fmt.Errorf("%w: negative initial capital %s", service.ErrInvalidOrderParams, initialCapital)
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetPortfoliosByOwner(ctx, ownerID)
		if err != nil {
			return err
		}

		// первый портфель владельца становится дефолтным
		portfolio = model.Portfolio{
			OwnerID:        ownerID,
			Name:           name,
			Kind:           kind,
			InitialCapital: initialCapital,
			CashBalance:    initialCapital,
			CurrentValue:   initialCapital,
			TotalPnl:       decimal.Zero,
			IsDefault:      len(existing) == 0,
		}

		portfolioID, err := s.repo.InsertPortfolio(ctx, portfolio)
		if err != nil {
			return err
		}

		portfolio, err = s.repo.GetPortfolio(ctx, portfolioID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Portfolio{}, fmt.Errorf("%w: portfolio %q", service.ErrAlreadyExists, name)
		}
		slog.Error("got error from repo in CreatePortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	return portfolio, nil
}

func (s *LedgerService) GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPortfolio"

	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Portfolio{}, service.ErrPortfolioNotFound
		}
		slog.Error("got error from repo.GetPortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	return portfolio, nil
}

func (s *LedgerService) ListPortfolios(ctx context.Context, ownerID int64) ([]model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ListPortfolios"

	portfolios, err := s.repo.GetPortfoliosByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("got error from repo.GetPortfoliosByOwner", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return portfolios, nil
}

// SetDefaultPortfolio promotes one of the owner's portfolios to default. The
// clear and set run in one transaction so the owner never ends up with zero
// or two defaults.
func (s *LedgerService) SetDefaultPortfolio(ctx context.Context, ownerID, portfolioID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.SetDefaultPortfolio"

	slog.Debug("SetDefaultPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("SetDefaultPortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		portfolio, err := s.repo.GetPortfolioForUpdate(ctx, portfolioID)
		if err != nil {
			return err
		}

		if portfolio.OwnerID != ownerID {
			return repository.ErrNotFound
		}

		if portfolio.IsDefault {
			return nil
		}

		if err := s.repo.ClearDefaultPortfolio(ctx, ownerID); err != nil {
			return err
		}

		return s.repo.SetDefaultPortfolio(ctx, portfolioID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrPortfolioNotFound
		}
		slog.Error("got error from repo in SetDefaultPortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *LedgerService) DeletePortfolio(ctx context.Context, portfolioID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.DeletePortfolio"

	slog.Debug("DeletePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("DeletePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		portfolio, err := s.repo.GetPortfolioForUpdate(ctx, portfolioID)
		if err != nil {
			return err
		}

		if portfolio.IsDefault {
			return service.ErrDefaultPortfolioDelete
		}

		return s.repo.DeletePortfolio(ctx, portfolioID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrPortfolioNotFound
		}
		if errors.Is(err, service.ErrDefaultPortfolioDelete) {
			return err
		}
		slog.Error("got error from repo in DeletePortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// getQuote looks the symbol up cache-first and falls back to the provider.
func (s *LedgerService) getQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.getQuote"

	quote, err := s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	quote, err = s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		slog.Warn("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return quoteModel.Quote{}, err
	}

	go s.cache.SetQuote(context.WithoutCancel(ctx), quote)

	return quote, nil
}
