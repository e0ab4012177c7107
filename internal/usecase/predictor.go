package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	domsvc "TradeSignal/internal/domain/service"
	"TradeSignal/internal/services/features"
	"TradeSignal/internal/services/performance"
	"TradeSignal/internal/services/signal"
	applogger "TradeSignal/pkg/logger"
	"TradeSignal/pkg/util"
)

const (
	DefaultWindowSize = 30

	sourceAPI      = "api"
	sourceRealtime = "realtime"
)

// Predictor turns a price window into a trading signal with a backtest summary.
type Predictor struct {
	model    domsvc.Inferencer
	analyzer *performance.Analyzer
	sinks    []drepo.PredictionSink
	metrics  drepo.Metrics
	log      *applogger.Logger
	now      func() time.Time
	newID    func() string
}

// PredictorOption configures Predictor.
type PredictorOption func(*Predictor)

// WithSinks adds prediction sinks. Sink failures are logged, never returned.
func WithSinks(sinks ...drepo.PredictionSink) PredictorOption {
	return func(p *Predictor) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

// WithAnalyzer overrides the performance analyzer.
func WithAnalyzer(a *performance.Analyzer) PredictorOption {
	return func(p *Predictor) {
		if a != nil {
			p.analyzer = a
		}
	}
}

// WithPredictorLogger sets the logger.
func WithPredictorLogger(l *applogger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPredictor(model domsvc.Inferencer, metrics drepo.Metrics, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		model:    model,
		analyzer: performance.NewAnalyzer(),
		metrics:  metrics,
		log:      applogger.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict runs the full pipeline on caller supplied arrays.
func (p *Predictor) Predict(ctx context.Context, req *models.PredictRequest) (*models.PredictionResult, error) {
	return p.predict(ctx, req, sourceAPI)
}

func (p *Predictor) predict(ctx context.Context, req *models.PredictRequest, source string) (*models.PredictionResult, error) {
	res, err := p.run(ctx, req, source)
	if err != nil {
		result := "error"
		if models.IsClientError(err) {
			result = "rejected"
		}
		p.metrics.RecordPrediction(source, result)
		return nil, err
	}
	p.metrics.RecordPrediction(source, "ok")
	return res, nil
}

func (p *Predictor) run(ctx context.Context, req *models.PredictRequest, source string) (*models.PredictionResult, error) {
	totalStart := time.Now()

	window, symbol, err := prepareWindow(req)
	if err != nil {
		return nil, err
	}

	featureStart := time.Now()
	fv, err := features.BuildFeatureVector(window)
	if err != nil {
		return nil, err
	}
	featureTime := time.Since(featureStart)

	tensorStart := time.Now()
	input := make(models.FeatureVector, len(fv))
	copy(input, fv)
	tensorTime := time.Since(tensorStart)

	modelStart := time.Now()
	out, err := p.model.Infer(ctx, input, req.Position)
	if err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	modelTime := time.Since(modelStart)

	action, confidence := signal.ClipModelOutput(out.Action, out.Confidence)

	positions := make([]float64, window.Len())
	for i := range positions {
		positions[i] = action
	}
	perf := p.analyzer.Analyze(window.Close, positions)

	sig, err := signal.FormatSignal(action, confidence, req.Position)
	if err != nil {
		return nil, err
	}

	res := &models.PredictionResult{
		ID:                 p.newID(),
		Prediction:         models.ModelOutput{Action: action, Confidence: confidence},
		TradingSignal:      sig,
		PerformanceMetrics: perf,
		PerformanceTable:   perf.Table(),
		Timing: models.Timing{
			FeatureCalculation: millis(featureTime),
			TensorConversion:   millis(tensorTime),
			ModelInference:     millis(modelTime),
			TotalTime:          millis(time.Since(totalStart)),
		},
	}

	p.metrics.RecordStageLatency("feature_calculation", featureTime.Seconds())
	p.metrics.RecordStageLatency("tensor_conversion", tensorTime.Seconds())
	p.metrics.RecordStageLatency("model_inference", modelTime.Seconds())
	p.metrics.RecordStageLatency("total", time.Since(totalStart).Seconds())
	p.metrics.RecordAction(metricSymbol(symbol), action, confidence)

	p.publish(ctx, models.PredictionRecord{
		ID:            res.ID,
		Symbol:        symbol,
		Source:        source,
		CreatedAt:     p.now().UTC(),
		WindowSize:    window.Len(),
		Position:      req.Position,
		Action:        action,
		Confidence:    confidence,
		ProfitAndLoss: perf.ProfitAndLoss,
		SharpeRatio:   perf.SharpeRatio,
		MaxDrawdown:   perf.MaxDrawdown,
		TotalTimeMs:   res.Timing.TotalTime,
	})

	return res, nil
}

// prepareWindow checks array shapes and keeps the last window_size rows.
func prepareWindow(req *models.PredictRequest) (models.PriceWindow, string, error) {
	if req == nil {
		return models.PriceWindow{}, "", &models.InputShapeError{Field: "body", Reason: "request is empty"}
	}
	symbol := ""
	if req.Symbol != "" {
		s, err := models.NormalizeSymbol(req.Symbol)
		if err != nil {
			return models.PriceWindow{}, "", err
		}
		symbol = s
	}
	if !util.IsFinite(req.Position) || req.Position < -1 || req.Position > 1 {
		return models.PriceWindow{}, "", &models.InputShapeError{Field: "position", Reason: "must be within [-1, 1]"}
	}

	w := req.Window()
	n := w.Len()
	for _, s := range []struct {
		name string
		vals []float64
	}{{"low", w.Low}, {"high", w.High}, {"volume", w.Volume}} {
		if len(s.vals) != n {
			return models.PriceWindow{}, "", &models.InputShapeError{Field: s.name, Expected: n, Actual: len(s.vals)}
		}
	}

	size := req.WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	if n < size {
		return models.PriceWindow{}, "", &models.InputShapeError{
			Field:    "close",
			Expected: size,
			Actual:   n,
			Reason:   fmt.Sprintf("not enough data points: expected at least %d, got %d", size, n),
		}
	}
	return w.Tail(size), symbol, nil
}

func (p *Predictor) publish(ctx context.Context, rec models.PredictionRecord) {
	for _, s := range p.sinks {
		if err := s.Save(ctx, rec); err != nil {
			p.metrics.RecordError("prediction_sink")
			p.log.Warn("prediction sink failed",
				applogger.String("id", rec.ID),
				applogger.String("symbol", rec.Symbol),
				applogger.Error(err),
			)
		}
	}
}

func millis(d time.Duration) float64 {
	return util.RoundTo(float64(d)/float64(time.Millisecond), 2)
}

func metricSymbol(s string) string {
	if s == "" {
		return "custom"
	}
	return s
}
