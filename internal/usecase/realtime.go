package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/cache"
	applogger "TradeSignal/pkg/logger"
	"TradeSignal/pkg/util"
)

const (
	DefaultSymbol         = "AAPL"
	DefaultMaxPriceChange = 1.0

	lookbackFactor      = 4
	retryLookbackFactor = 8
)

// RealtimePredictor fetches recent candles for a symbol and predicts on the latest window.
type RealtimePredictor struct {
	source    drepo.MarketDataSource
	predictor *Predictor
	loader    *cache.Loader
	ttl       time.Duration
	maxChange float64
	symbol    string
	window    int
	metrics   drepo.Metrics
	log       *applogger.Logger
	now       func() time.Time
}

// RealtimeOption configures RealtimePredictor.
type RealtimeOption func(*RealtimePredictor)

// WithCache caches responses for ttl. Concurrent identical requests share one fetch with or without it.
func WithCache(c cache.Service, ttl time.Duration) RealtimeOption {
	return func(r *RealtimePredictor) {
		r.loader = cache.NewLoader(c)
		r.ttl = ttl
	}
}

// WithMaxPriceChange sets the largest accepted relative close change over the fetched range (1.0 = 100%).
func WithMaxPriceChange(f float64) RealtimeOption {
	return func(r *RealtimePredictor) {
		if f > 0 {
			r.maxChange = f
		}
	}
}

// WithDefaults sets the symbol and window size used when a request leaves them empty.
func WithDefaults(symbol string, window int) RealtimeOption {
	return func(r *RealtimePredictor) {
		if symbol != "" {
			r.symbol = symbol
		}
		if window > 0 {
			r.window = window
		}
	}
}

// WithRealtimeLogger sets the logger.
func WithRealtimeLogger(l *applogger.Logger) RealtimeOption {
	return func(r *RealtimePredictor) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the wall clock used when the request has no as_of.
func WithClock(now func() time.Time) RealtimeOption {
	return func(r *RealtimePredictor) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRealtimePredictor(source drepo.MarketDataSource, predictor *Predictor, metrics drepo.Metrics, opts ...RealtimeOption) *RealtimePredictor {
	r := &RealtimePredictor{
		source:    source,
		predictor: predictor,
		maxChange: DefaultMaxPriceChange,
		symbol:    DefaultSymbol,
		window:    DefaultWindowSize,
		metrics:   metrics,
		log:       applogger.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = cache.NewLoader(nil)
	}
	r.loader.OnError = func(op, key string, err error) {
		r.log.Debug("realtime cache "+op+" failed", applogger.String("key", key), applogger.Error(err))
	}
	return r
}

// fetchResult is the market data behind one request.
type fetchResult struct {
	candles      []models.Candle
	daysSearched int
}

// Predict fetches the latest window for req.Symbol and runs the predictor with a flat position.
func (r *RealtimePredictor) Predict(ctx context.Context, req *models.RealtimeRequest) (*models.PredictionResult, error) {
	if req == nil {
		req = &models.RealtimeRequest{}
	}
	rawSymbol := req.Symbol
	if rawSymbol == "" {
		rawSymbol = r.symbol
	}
	symbol, err := models.NormalizeSymbol(rawSymbol)
	if err != nil {
		return nil, err
	}
	size := req.WindowSize
	if size <= 0 {
		size = r.window
	}
	iv := drepo.NormalizeInterval(req.Interval)

	end := r.now()
	if req.AsOf != "" {
		t, ok := util.ParseTime(req.AsOf)
		if !ok {
			return nil, &models.InputShapeError{Field: "as_of", Reason: "expected RFC3339, YYYY-MM-DD or unix seconds"}
		}
		end = t
	}
	end = end.UTC()

	key := cache.Key("realtime", symbol, size, string(iv), util.FormatDate(end))
	res, hit, err := cache.Load(ctx, r.loader, key, r.ttl, func(ctx context.Context) (*models.PredictionResult, error) {
		return r.predictWindow(ctx, symbol, size, iv, end)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		r.log.Debug("realtime prediction served from cache", applogger.String("key", key))
	}
	return res, nil
}

// predictWindow fetches and checks the window ending at end, then runs the predictor.
func (r *RealtimePredictor) predictWindow(ctx context.Context, symbol string, size int, iv drepo.Interval, end time.Time) (*models.PredictionResult, error) {
	fetched, err := r.fetch(ctx, symbol, end, size, iv)
	if err != nil {
		r.metrics.RecordPrediction(sourceRealtime, outcome(err))
		return nil, err
	}
	candles := fetched.candles
	change, err := r.check(candles, end, size)
	if err != nil {
		r.metrics.RecordPrediction(sourceRealtime, outcome(err))
		return nil, err
	}

	window := models.WindowFromCandles(candles).Tail(size)
	res, err := r.predictor.predict(ctx, &models.PredictRequest{
		Close:      window.Close,
		Low:        window.Low,
		High:       window.High,
		Volume:     window.Volume,
		Position:   0,
		WindowSize: size,
		Symbol:     symbol,
	}, sourceRealtime)
	if err != nil {
		return nil, err
	}

	last := candles[len(candles)-1]
	res.DataInfo = &models.DataInfo{
		LastUpdate:            formatBucket(last.Bucket, iv),
		Interval:              string(iv),
		Symbol:                symbol,
		Source:                r.source.Name(),
		WindowSize:            size,
		TotalRecordsAvailable: len(candles),
		DateRange: models.DateRange{
			Start: util.FormatDate(candles[len(candles)-size].Bucket),
			End:   util.FormatDate(last.Bucket),
		},
		TradingDaysFound:     len(candles),
		CalendarDaysSearched: fetched.daysSearched,
		PriceChangePercent:   round2(change),
		CurrentPrice:         round2(last.Close),
	}
	return res, nil
}

// fetch looks back size*4 calendar days and retries once with size*8 when nothing comes back.
func (r *RealtimePredictor) fetch(ctx context.Context, symbol string, end time.Time, size int, iv drepo.Interval) (fetchResult, error) {
	var (
		candles []models.Candle
		from    time.Time
	)
	for _, factor := range []int{lookbackFactor, retryLookbackFactor} {
		from = end.AddDate(0, 0, -size*factor)
		start := time.Now()
		var err error
		candles, err = r.source.FetchCandles(ctx, symbol, from, end, iv)
		r.metrics.RecordLatency("market_data_fetch", time.Since(start).Seconds())
		if err != nil {
			r.metrics.RecordError("market_data")
			return fetchResult{}, fmt.Errorf("fetch %s candles from %s: %w", symbol, r.source.Name(), err)
		}
		if len(candles) > 0 {
			break
		}
	}
	if len(candles) == 0 {
		return fetchResult{}, &models.InsufficientDataError{Expected: size, Actual: 0}
	}
	return fetchResult{candles: candles, daysSearched: int(end.Sub(from).Hours() / 24)}, nil
}

// check applies the data quality rules and returns the percent close change over the fetched range.
func (r *RealtimePredictor) check(candles []models.Candle, end time.Time, size int) (float64, error) {
	last := candles[len(candles)-1]
	if util.AfterDay(last.Bucket, end) {
		return 0, &models.DataQualityError{Reason: "received future dates in data"}
	}
	if len(candles) < size {
		return 0, &models.InsufficientDataError{Expected: size, Actual: len(candles)}
	}
	for _, c := range candles {
		for _, v := range []float64{c.Close, c.Low, c.High, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return 0, &models.DataQualityError{Reason: "data contains missing values"}
			}
		}
	}
	first := candles[0].Close
	if first <= 0 {
		return 0, &models.DataQualityError{Reason: "first close is not positive"}
	}
	change := (last.Close - first) / first * 100
	if math.Abs(change) > r.maxChange*100 {
		return 0, &models.DataQualityError{Reason: fmt.Sprintf("unusual price change of %.2f%%", change)}
	}
	return change, nil
}

func outcome(err error) string {
	if models.IsClientError(err) {
		return "rejected"
	}
	return "error"
}

func formatBucket(t time.Time, iv drepo.Interval) string {
	if iv == drepo.Interval1d {
		return util.FormatDate(t)
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func round2(v float64) float64 {
	return util.RoundTo(v, 2)
}
