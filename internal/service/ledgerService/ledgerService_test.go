package ledgerService

import (
	"context"
	"testing"

	"github.com/KotFed0t/portfolio_ledger/internal/model"
	"github.com/KotFed0t/portfolio_ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePortfolio_FirstBecomesDefault(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.True(t, first.CashBalance.Equal(dec("100000")))
	assert.True(t, first.CurrentValue.Equal(dec("100000")))
	assert.True(t, first.TotalPnl.IsZero())

	second, err := srv.CreatePortfolio(ctx, 1, "speculative", model.PortfolioKindReal, dec("5000"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
}

func TestCreatePortfolio_DuplicateName(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)

	_, err = srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	assert.ErrorIs(t, err, service.ErrAlreadyExists)
}

func TestCreatePortfolio_Validation(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := srv.CreatePortfolio(ctx, 1, "", model.PortfolioKindPaper, dec("100000"))
	assert.ErrorIs(t, err, service.ErrInvalidOrderParams)

	_, err = srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKind("margin"), dec("100000"))
	assert.ErrorIs(t, err, service.ErrInvalidOrderParams)

	_, err = srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("-1"))
	assert.ErrorIs(t, err, service.ErrInvalidOrderParams)
}

func TestSetDefaultPortfolio_MovesFlag(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)
	second, err := srv.CreatePortfolio(ctx, 1, "speculative", model.PortfolioKindPaper, dec("5000"))
	require.NoError(t, err)

	require.NoError(t, srv.SetDefaultPortfolio(ctx, 1, second.PortfolioID))

	updatedFirst, err := srv.GetPortfolio(ctx, first.PortfolioID)
	require.NoError(t, err)
	updatedSecond, err := srv.GetPortfolio(ctx, second.PortfolioID)
	require.NoError(t, err)

	assert.False(t, updatedFirst.IsDefault)
	assert.True(t, updatedSecond.IsDefault)
}

func TestSetDefaultPortfolio_ForeignPortfolio(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	portfolio, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)

	err = srv.SetDefaultPortfolio(ctx, 2, portfolio.PortfolioID)
	assert.ErrorIs(t, err, service.ErrPortfolioNotFound)
}

func TestDeletePortfolio_DefaultRejected(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	portfolio, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)

	err = srv.DeletePortfolio(ctx, portfolio.PortfolioID)
	assert.ErrorIs(t, err, service.ErrDefaultPortfolioDelete)
}

func TestDeletePortfolio_NonDefault(t *testing.T) {
	srv, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := srv.CreatePortfolio(ctx, 1, "main", model.PortfolioKindPaper, dec("100000"))
	require.NoError(t, err)
	second, err := srv.CreatePortfolio(ctx, 1, "speculative", model.PortfolioKindPaper, dec("5000"))
	require.NoError(t, err)

	require.NoError(t, srv.DeletePortfolio(ctx, second.PortfolioID))

	_, err = srv.GetPortfolio(ctx, second.PortfolioID)
	assert.ErrorIs(t, err, service.ErrPortfolioNotFound)

	portfolios, err := srv.ListPortfolios(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, portfolios, 1)
}
