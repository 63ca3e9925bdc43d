package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/portfolio_ledger/config"
	"github.com/KotFed0t/portfolio_ledger/internal/externalApi"
	"github.com/KotFed0t/portfolio_ledger/internal/model/quoteModel"
	"github.com/KotFed0t/portfolio_ledger/utils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type quotesResponse struct {
	Quotes []quoteModel.Quote `json:"quotes"`
}

type QuoteApi struct {
	client  *resty.Client
	limiter *rate.Limiter
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url)
	return &QuoteApi{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.API.QuoteApi.RateLimitRps), cfg.API.QuoteApi.RateLimitBurst),
	}
}

func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	quotes, err := a.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return quoteModel.Quote{}, err
	}

	quote, ok := quotes[symbol]
	if !ok {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	return quote, nil
}

func (a *QuoteApi) GetQuotes(ctx context.Context, symbols []string) (map[string]quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/v1/quotes"
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
	}

	slog.Debug("start QuoteApi.GetQuotes request", slog.String("rqID", rqID), slog.Any("symbols", symbols))

	// ждем слот от лимитера, иначе провайдер начнет резать запросы
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		SetContext(ctx).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, externalApi.ErrNotFound
	}

	if resp.IsError() {
		slog.Error("QuoteApi returned error status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID))
		return nil, fmt.Errorf("quote api status %d", resp.StatusCode())
	}

	rawQuotes := quotesResponse{}
	err = json.Unmarshal(resp.Body(), &rawQuotes)
	if err != nil {
		slog.Error("can't unmarshall response into quotesResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	res := make(map[string]quoteModel.Quote, len(rawQuotes.Quotes))
	for _, quote := range rawQuotes.Quotes {
		if quote.Symbol == "" || quote.Price.IsZero() {
			slog.Warn("skip quote without symbol or price", slog.String("rqID", rqID), slog.Any("quote", quote))
			continue
		}
		res[quote.Symbol] = quote
	}

	slog.Debug("QuoteApi.GetQuotes request complete", slog.String("rqID", rqID), slog.Int("quotes", len(res)))

	return res, nil
}
