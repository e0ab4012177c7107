package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"TradeSignal/internal/domain/models"
)

// MaxBatchSymbols caps the symbols of one batch request.
const MaxBatchSymbols = 10

type symbolPredictor interface {
	Predict(ctx context.Context, req *models.RealtimeRequest) (*models.PredictionResult, error)
}

// BatchPredictor runs real-time predictions for several symbols concurrently.
type BatchPredictor struct {
	realtime symbolPredictor
	timeout  time.Duration
	now      func() time.Time
}

func NewBatchPredictor(realtime symbolPredictor, timeout time.Duration) *BatchPredictor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BatchPredictor{realtime: realtime, timeout: timeout, now: time.Now}
}

// BatchParams selects the symbols and shared window of a batch.
type BatchParams struct {
	Symbols    []string
	WindowSize int
	Interval   string
	AsOf       string
}

// Predict fans out one real-time prediction per distinct symbol. Per-symbol failures are
// reported in Errors; only an unusable symbol list fails the whole batch.
func (b *BatchPredictor) Predict(ctx context.Context, p BatchParams) (*models.BatchPrediction, error) {
	symbols, errs := distinctSymbols(p.Symbols)
	if len(symbols) == 0 && len(errs) == 0 {
		return nil, &models.InputShapeError{Field: "symbols", Reason: "at least one symbol is required"}
	}
	if len(symbols)+len(errs) > MaxBatchSymbols {
		return nil, &models.InputShapeError{Field: "symbols", Expected: MaxBatchSymbols, Actual: len(symbols) + len(errs), Reason: "too many symbols"}
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res := &models.BatchPrediction{
		Timestamp: b.now().UTC(),
		Results:   make(map[string]*models.PredictionResult, len(symbols)),
		Errors:    errs,
	}

	type item struct {
		symbol string
		val    *models.PredictionResult
		err    error
	}
	ch := make(chan item, len(symbols))
	var wg sync.WaitGroup

	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			v, err := b.realtime.Predict(ctx, &models.RealtimeRequest{
				Symbol:     sym,
				WindowSize: p.WindowSize,
				Interval:   p.Interval,
				AsOf:       p.AsOf,
			})
			ch <- item{sym, v, err}
		}(sym)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.symbol] = it.err.Error()
			continue
		}
		res.Results[it.symbol] = it.val
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

// distinctSymbols normalizes and dedups symbols, skipping blanks. Invalid ones are returned as errors keyed by the raw input.
func distinctSymbols(raw []string) ([]string, map[string]string) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	errs := make(map[string]string)
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		sym, err := models.NormalizeSymbol(s)
		if err != nil {
			errs[s] = err.Error()
			continue
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, errs
}
