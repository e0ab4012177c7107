package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeSignal/internal/domain/models"
	domrepo "TradeSignal/internal/domain/repository"
)

const (
	defaultCandleBars = 100
	maxCandleLimit    = 5000
)

// CandlesUseCase serves the raw market data behind predictions.
type CandlesUseCase struct {
	source domrepo.MarketDataSource
	now    func() time.Time
}

func NewCandlesUseCase(source domrepo.MarketDataSource) *CandlesUseCase {
	return &CandlesUseCase{source: source, now: time.Now}
}

// GetCandlesParams selects candles. A zero To means now; a zero From means 100 bars before To.
type GetCandlesParams struct {
	Symbol   string
	From     time.Time
	To       time.Time
	Interval domrepo.Interval
	Limit    int
}

type GetCandlesResult struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Source   string          `json:"source"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Count    int             `json:"count"`
	Candles  []models.Candle `json:"candles"`
}

// GetCandles returns at most Limit candles, keeping the most recent ones.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	symbol, err := models.NormalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if !domrepo.IsValidInterval(p.Interval) {
		p.Interval = domrepo.DefaultInterval()
	}
	if p.To.IsZero() {
		p.To = uc.now()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-defaultCandleBars * p.Interval.Duration())
	}
	p.From, p.To = p.From.UTC(), p.To.UTC()
	if p.From.After(p.To) {
		return nil, &models.InputShapeError{Field: "from", Reason: "must not be after to"}
	}
	if p.Limit <= 0 {
		p.Limit = defaultCandleBars
	}
	if p.Limit > maxCandleLimit {
		p.Limit = maxCandleLimit
	}

	candles, err := uc.source.FetchCandles(ctx, symbol, p.From, p.To, p.Interval)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	return &GetCandlesResult{
		Symbol:   symbol,
		Interval: string(p.Interval),
		Source:   uc.source.Name(),
		From:     p.From,
		To:       p.To,
		Count:    len(candles),
		Candles:  candles,
	}, nil
}
