package ledgerService

import (
	"context"
	"testing"

	"github.com/KotFed0t/portfolio_ledger/internal/model/quoteModel"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshValuations_UpdatesDerivedFieldsOnly(t *testing.T) {
	quotes := newFakeQuoteApi(
		quoteModel.Quote{Symbol: "AAPL", Price: dec("180"), Sector: "Technology"},
		quoteModel.Quote{Symbol: "XOM", Price: dec("110"), Sector: "Energy"},
	)
	srv, _ := newTestService(t, quotes)
	ctx := context.Background()
	portfolio := mustCreatePortfolio(t, srv, "100000")

	_, err := srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "AAPL", "100", "150", "0"))
	require.NoError(t, err)
	_, err = srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "XOM", "200", "100", "0"))
	require.NoError(t, err)

	res, err := srv.RefreshValuations(ctx, portfolio.PortfolioID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, 0, res.SkippedCount)

	position, err := srv.repo.GetPosition(ctx, portfolio.PortfolioID, "AAPL")
	require.NoError(t, err)
	assert.True(t, position.CurrentPrice.Equal(dec("180")))
	assert.True(t, position.MarketValue.Equal(dec("18000")))
	assert.True(t, position.UnrealizedPnl.Equal(dec("3000")))
	assert.True(t, position.Quantity.Equal(dec("100")), "refresh must not touch quantity")
	assert.True(t, position.AvgCost.Equal(dec("150")), "refresh must not touch avg cost")
	assert.Equal(t, "Technology", position.Sector)

	updated, err := srv.GetPortfolio(ctx, portfolio.PortfolioID)
	require.NoError(t, err)
	// cash 65000 + 18000 + 22000
	assert.True(t, updated.CashBalance.Equal(dec("65000")), "refresh must not touch cash")
	assert.True(t, updated.CurrentValue.Equal(dec("105000")))
	assert.True(t, updated.TotalPnl.Equal(dec("5000")))

	assert.True(t, res.CurrentValue.Equal(dec("105000")))
	assert.True(t, res.TotalUnrealizedPnl.Equal(dec("5000")))
}

func TestRefreshValuations_SkipsSymbolsWithoutQuote(t *testing.T) {
	quotes := newFakeQuoteApi(
		quoteModel.Quote{Symbol: "AAPL", Price: dec("180"), Sector: "Technology"},
	)
	srv, _ := newTestService(t, quotes)
	ctx := context.Background()
	portfolio := mustCreatePortfolio(t, srv, "100000")

	_, err := srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "AAPL", "100", "150", "0"))
	require.NoError(t, err)
	_, err = srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "DELISTED", "10", "50", "0"))
	require.NoError(t, err)

	res, err := srv.RefreshValuations(ctx, portfolio.PortfolioID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 1, res.SkippedCount)

	position, err := srv.repo.GetPosition(ctx, portfolio.PortfolioID, "DELISTED")
	require.NoError(t, err)
	assert.True(t, position.CurrentPrice.Equal(dec("50")), "skipped symbol keeps its last stored price")
}

func TestRefreshValuations_Idempotent(t *testing.T) {
	quotes := newFakeQuoteApi(
		quoteModel.Quote{Symbol: "AAPL", Price: dec("180"), Sector: "Technology"},
	)
	srv, _ := newTestService(t, quotes)
	ctx := context.Background()
	portfolio := mustCreatePortfolio(t, srv, "100000")

	_, err := srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "AAPL", "100", "150", "0"))
	require.NoError(t, err)

	first, err := srv.RefreshValuations(ctx, portfolio.PortfolioID)
	require.NoError(t, err)

	second, err := srv.RefreshValuations(ctx, portfolio.PortfolioID)
	require.NoError(t, err)

	assert.True(t, first.CurrentValue.Equal(second.CurrentValue))
	assert.True(t, first.TotalUnrealizedPnl.Equal(second.TotalUnrealizedPnl))
}

func TestRefreshValuations_UsesCacheBeforeProvider(t *testing.T) {
	quotes := newFakeQuoteApi(
		quoteModel.Quote{Symbol: "AAPL", Price: dec("180"), Sector: "Technology"},
	)
	srv, _ := newTestService(t, quotes)
	ctx := context.Background()
	portfolio := mustCreatePortfolio(t, srv, "100000")

	_, err := srv.ApplyOrder(ctx, buy(portfolio.PortfolioID, "AAPL", "100", "150", "0"))
	require.NoError(t, err)

	require.NoError(t, srv.cache.SetQuote(ctx, quoteModel.Quote{Symbol: "AAPL", Price: dec("175")}))

	res, err := srv.RefreshValuations(ctx, portfolio.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)

	position, err := srv.repo.GetPosition(ctx, portfolio.PortfolioID, "AAPL")
	require.NoError(t, err)
	assert.True(t, position.CurrentPrice.Equal(dec("175")), "cached quote must win over the provider")
	assert.Equal(t, 0, quotes.calls)
}

func TestRefreshValuations_UnknownPortfolio(t *testing.T) {
	srv, _ := newTestService(t, nil)

	_, err := srv.RefreshValuations(context.Background(), 42)
	assert.ErrorIs(t, err, service.ErrPortfolioNotFound)
}
