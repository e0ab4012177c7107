package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/config"
	xhttp "TradeSignal/pkg/http"
)

// YahooSource reads candles from the Yahoo Finance v8 chart API.
type YahooSource struct {
	baseURL string
	client  *xhttp.Client
}

func NewYahooSource(cfg *config.Config, opts ...xhttp.ClientOption) *YahooSource {
	y := cfg.MarketData.Yahoo
	opts = append([]xhttp.ClientOption{
		xhttp.WithTimeout(y.Timeout),
		xhttp.WithHeader("User-Agent", y.UserAgent),
	}, opts...)
	return &YahooSource{baseURL: y.BaseURL, client: xhttp.NewClient(opts...)}
}

func (s *YahooSource) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		// null entries (halted or partial sessions) decode to nil
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchCandles returns candles in [from, to]. An unknown symbol or an empty range yields no candles.
// Null quote values become NaN so downstream quality checks can reject them.
func (s *YahooSource) FetchCandles(ctx context.Context, symbol string, from, to time.Time, interval drepo.Interval) ([]models.Candle, error) {
	var resp chartResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", s.baseURL, url.PathEscape(symbol)),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"interval": {string(drepo.NormalizeInterval(string(interval)))},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return decodeChart(symbol, resp.Chart.Result[0]), nil
}

func decodeChart(symbol string, r chartResult) []models.Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	out := make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		out = append(out, models.Candle{
			Bucket: time.Unix(ts, 0).UTC(),
			Symbol: symbol,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		})
	}
	return out
}

func at(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

var _ drepo.MarketDataSource = (*YahooSource)(nil)
