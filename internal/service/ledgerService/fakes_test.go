package ledgerService

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_ledger/data/repository"
	"github.com/KotFed0t/portfolio_ledger/internal/externalApi"
	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/model/quoteModel"
	"github.com/shopspring/decimal"
)

// fakeRepo is an in-memory Repository. WithinTransaction takes a snapshot and
// restores it when the callback fails, and holds a single lock for the whole
// callback, which also gives the per-portfolio serialization the real
// repository gets from row locks.
type fakeRepo struct {
	mu                sync.Mutex
	portfolios        map[int64]model.Portfolio
	positions         map[int64]map[string]model.Position
	transactions      []model.Transaction
	nextPortfolioID   int64
	nextTransactionID int64
	now               time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		portfolios: make(map[int64]model.Portfolio),
		positions:  make(map[int64]map[string]model.Position),
		now:        time.Now().Add(-time.Hour),
	}
}

type fakeTxKey struct{}

func (r *fakeRepo) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

type repoSnapshot struct {
	portfolios   map[int64]model.Portfolio
	positions    map[int64]map[string]model.Position
	transactions []model.Transaction
}

func (r *fakeRepo) snapshot() repoSnapshot {
	s := repoSnapshot{
		portfolios:   make(map[int64]model.Portfolio, len(r.portfolios)),
		positions:    make(map[int64]map[string]model.Position, len(r.positions)),
		transactions: append([]model.Transaction(nil), r.transactions...),
	}
	for id, p := range r.portfolios {
		s.portfolios[id] = p
	}
	for id, bySymbol := range r.positions {
		cp := make(map[string]model.Position, len(bySymbol))
		for symbol, position := range bySymbol {
			cp[symbol] = position
		}
		s.positions[id] = cp
	}
	return s
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	if err := tFunc(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		r.portfolios = snap.portfolios
		r.positions = snap.positions
		r.transactions = snap.transactions
		return err
	}
	return nil
}

func (r *fakeRepo) InsertPortfolio(ctx context.Context, portfolio model.Portfolio) (int64, error) {
	defer r.lock(ctx)()

	for _, existing := range r.portfolios {
		if existing.OwnerID == portfolio.OwnerID && existing.Name == portfolio.Name {
			return 0, repository.ErrAlreadyExists
		}
	}

	r.nextPortfolioID++
	portfolio.PortfolioID = r.nextPortfolioID
	portfolio.CreatedAt = r.now
	r.portfolios[portfolio.PortfolioID] = portfolio
	r.positions[portfolio.PortfolioID] = make(map[string]model.Position)
	return portfolio.PortfolioID, nil
}

func (r *fakeRepo) GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	defer r.lock(ctx)()

	portfolio, ok := r.portfolios[portfolioID]
	if !ok {
		return model.Portfolio{}, repository.ErrNotFound
	}
	return portfolio, nil
}

func (r *fakeRepo) GetPortfolioForUpdate(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	return r.GetPortfolio(ctx, portfolioID)
}

func (r *fakeRepo) GetPortfoliosByOwner(ctx context.Context, ownerID int64) ([]model.Portfolio, error) {
	defer r.lock(ctx)()

	var res []model.Portfolio
	for _, portfolio := range r.portfolios {
		if portfolio.OwnerID == ownerID {
			res = append(res, portfolio)
		}
	}
	return res, nil
}

func (r *fakeRepo) GetAllPortfolioIDs(ctx context.Context) ([]int64, error) {
	defer r.lock(ctx)()

	var ids []int64
	for id := range r.portfolios {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepo) UpdatePortfolioLedger(ctx context.Context, portfolioID int64, cashBalance, currentValue, totalPnl decimal.Decimal) error {
	defer r.lock(ctx)()

	portfolio, ok := r.portfolios[portfolioID]
	if !ok {
		return repository.ErrNotFound
	}
	portfolio.CashBalance = cashBalance
	portfolio.CurrentValue = currentValue
	portfolio.TotalPnl = totalPnl
	r.portfolios[portfolioID] = portfolio
	return nil
}

func (r *fakeRepo) UpdatePortfolioValuation(ctx context.Context, portfolioID int64) error {
	defer r.lock(ctx)()

	portfolio, ok := r.portfolios[portfolioID]
	if !ok {
		return repository.ErrNotFound
	}

	totalMarketValue := decimal.Zero
	for _, position := range r.positions[portfolioID] {
		totalMarketValue = totalMarketValue.Add(position.MarketValue)
	}

	portfolio.CurrentValue = portfolio.CashBalance.Add(totalMarketValue)
	portfolio.TotalPnl = portfolio.CurrentValue.Sub(portfolio.InitialCapital)
	r.portfolios[portfolioID] = portfolio
	return nil
}

func (r *fakeRepo) ClearDefaultPortfolio(ctx context.Context, ownerID int64) error {
	defer r.lock(ctx)()

	for id, portfolio := range r.portfolios {
		if portfolio.OwnerID == ownerID && portfolio.IsDefault {
			portfolio.IsDefault = false
			r.portfolios[id] = portfolio
		}
	}
	return nil
}

func (r *fakeRepo) SetDefaultPortfolio(ctx context.Context, portfolioID int64) error {
	defer r.lock(ctx)()

	portfolio, ok := r.portfolios[portfolioID]
	if !ok {
		return repository.ErrNotFound
	}
	portfolio.IsDefault = true
	r.portfolios[portfolioID] = portfolio
	return nil
}

func (r *fakeRepo) DeletePortfolio(ctx context.Context, portfolioID int64) error {
	defer r.lock(ctx)()

	if _, ok := r.portfolios[portfolioID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.portfolios, portfolioID)
	delete(r.positions, portfolioID)

	remaining := r.transactions[:0]
	for _, transaction := range r.transactions {
		if transaction.PortfolioID != portfolioID {
			remaining = append(remaining, transaction)
		}
	}
	r.transactions = remaining
	return nil
}

func (r *fakeRepo) GetPosition(ctx context.Context, portfolioID int64, symbol string) (model.Position, error) {
	defer r.lock(ctx)()

	position, ok := r.positions[portfolioID][symbol]
	if !ok {
		return model.Position{}, repository.ErrNotFound
	}
	return position, nil
}

func (r *fakeRepo) GetPositionForUpdate(ctx context.Context, portfolioID int64, symbol string) (model.Position, error) {
	return r.GetPosition(ctx, portfolioID, symbol)
}

func (r *fakeRepo) GetPositions(ctx context.Context, portfolioID int64) ([]model.Position, error) {
	defer r.lock(ctx)()

	var res []model.Position
	for _, position := range r.positions[portfolioID] {
		res = append(res, position)
	}
	return res, nil
}

func (r *fakeRepo) InsertPosition(ctx context.Context, position model.Position) error {
	defer r.lock(ctx)()

	if _, ok := r.positions[position.PortfolioID][position.Symbol]; ok {
		return repository.ErrAlreadyExists
	}
	r.positions[position.PortfolioID][position.Symbol] = position
	return nil
}

func (r *fakeRepo) UpdatePosition(ctx context.Context, position model.Position) error {
	defer r.lock(ctx)()

	if _, ok := r.positions[position.PortfolioID][position.Symbol]; !ok {
		return repository.ErrNotFound
	}
	r.positions[position.PortfolioID][position.Symbol] = position
	return nil
}

func (r *fakeRepo) UpdatePositionValuation(ctx context.Context, portfolioID int64, symbol string, price decimal.Decimal) error {
	defer r.lock(ctx)()

	position, ok := r.positions[portfolioID][symbol]
	if !ok {
		return repository.ErrNotFound
	}
	position.CurrentPrice = price
	position.MarketValue = position.Quantity.Mul(price)
	position.UnrealizedPnl = position.MarketValue.Sub(position.Quantity.Mul(position.AvgCost))
	r.positions[portfolioID][symbol] = position
	return nil
}

func (r *fakeRepo) UpdatePositionSector(ctx context.Context, portfolioID int64, symbol, sector string) error {
	defer r.lock(ctx)()

	position, ok := r.positions[portfolioID][symbol]
	if !ok {
		return repository.ErrNotFound
	}
	if position.Sector == "" {
		position.Sector = sector
		r.positions[portfolioID][symbol] = position
	}
	return nil
}

func (r *fakeRepo) DeletePosition(ctx context.Context, portfolioID int64, symbol string) error {
	defer r.lock(ctx)()

	if _, ok := r.positions[portfolioID][symbol]; !ok {
		return repository.ErrNotFound
	}
	delete(r.positions[portfolioID], symbol)
	return nil
}

func (r *fakeRepo) SumPositionsMarketValue(ctx context.Context, portfolioID int64) (decimal.Decimal, error) {
	defer r.lock(ctx)()

	total := decimal.Zero
	for _, position := range r.positions[portfolioID] {
		total = total.Add(position.MarketValue)
	}
	return total, nil
}

func (r *fakeRepo) InsertTransaction(ctx context.Context, transaction model.Transaction) (model.Transaction, error) {
	defer r.lock(ctx)()

	r.nextTransactionID++
	transaction.TransactionID = r.nextTransactionID
	transaction.CreatedAt = r.now.Add(time.Duration(r.nextTransactionID) * time.Second)
	r.transactions = append(r.transactions, transaction)
	return transaction, nil
}

func (r *fakeRepo) GetTransactions(ctx context.Context, portfolioID int64) ([]model.Transaction, error) {
	defer r.lock(ctx)()

	var res []model.Transaction
	for _, transaction := range r.transactions {
		if transaction.PortfolioID == portfolioID {
			res = append(res, transaction)
		}
	}
	return res, nil
}

func (r *fakeRepo) GetTransactionsInWindow(ctx context.Context, portfolioID int64, from, to time.Time) ([]model.Transaction, error) {
	defer r.lock(ctx)()

	var res []model.Transaction
	for _, transaction := range r.transactions {
		if transaction.PortfolioID != portfolioID {
			continue
		}
		if transaction.CreatedAt.Before(from) || transaction.CreatedAt.After(to) {
			continue
		}
		res = append(res, transaction)
	}
	return res, nil
}

var errCacheMiss = errors.New("cache miss")

type fakeCache struct {
	mu     sync.Mutex
	quotes map[string]quoteModel.Quote
}

func newFakeCache() *fakeCache {
	return &fakeCache{quotes: make(map[string]quoteModel.Quote)}
}

func (c *fakeCache) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	quote, ok := c.quotes[symbol]
	if !ok {
		return quoteModel.Quote{}, errCacheMiss
	}
	return quote, nil
}

func (c *fakeCache) SetQuote(ctx context.Context, quote quoteModel.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[quote.Symbol] = quote
	return nil
}

func (c *fakeCache) SetQuotes(ctx context.Context, quotes []quoteModel.Quote) error {
	for _, quote := range quotes {
		_ = c.SetQuote(ctx, quote)
	}
	return nil
}

type fakeQuoteApi struct {
	mu     sync.Mutex
	quotes map[string]quoteModel.Quote
	calls  int
}

func newFakeQuoteApi(quotes ...quoteModel.Quote) *fakeQuoteApi {
	api := &fakeQuoteApi{quotes: make(map[string]quoteModel.Quote)}
	for _, quote := range quotes {
		api.quotes[quote.Symbol] = quote
	}
	return api
}

func (a *fakeQuoteApi) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	quote, ok := a.quotes[symbol]
	if !ok {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}
	return quote, nil
}

func (a *fakeQuoteApi) GetQuotes(ctx context.Context, symbols []string) (map[string]quoteModel.Quote, error) {
	res := make(map[string]quoteModel.Quote, len(symbols))
	for _, symbol := range symbols {
		quote, err := a.GetQuote(ctx, symbol)
		if err != nil {
			continue
		}
		res[symbol] = quote
	}
	return res, nil
}

type fakeReportGenerator struct{}

func (g *fakeReportGenerator) Generate(ctx context.Context, report model.PerformanceReport) ([]byte, string, error) {
	return []byte(report.PortfolioName), ".xlsx", nil
}

type fakeCloudStorage struct {
	mu        sync.Mutex
	filenames []string
}

func (s *fakeCloudStorage) UploadFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filenames = append(s.filenames, filename)
	return "https://drive.google.com/file/d/fake/view", nil
}
