package api

import (
	"context"
	"errors"
	"strings"
	"time"

	models "TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/internal/usecase"
	xhttp "TradeSignal/pkg/http"
	applogger "TradeSignal/pkg/logger"
	"TradeSignal/pkg/util"

	"github.com/labstack/echo/v4"
)

type predictor interface {
	Predict(ctx context.Context, req *models.PredictRequest) (*models.PredictionResult, error)
}

type realtimePredictor interface {
	Predict(ctx context.Context, req *models.RealtimeRequest) (*models.PredictionResult, error)
}

type candleReader interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

type batchPredictor interface {
	Predict(ctx context.Context, p usecase.BatchParams) (*models.BatchPrediction, error)
}

type limiter interface {
	Allow(key string) bool
}

// PredictionEchoHandler serves the prediction endpoints.
type PredictionEchoHandler struct {
	logger   *applogger.Logger
	pred     predictor
	realtime realtimePredictor
	rl       limiter
	history  drepo.PredictionStore
	candles  candleReader
	batch    batchPredictor
}

// HandlerOption configures PredictionEchoHandler.
type HandlerOption func(*PredictionEchoHandler)

// WithRateLimiter limits GET /real_time_prediction per client IP.
func WithRateLimiter(rl limiter) HandlerOption {
	return func(h *PredictionEchoHandler) { h.rl = rl }
}

// WithHistory enables GET /api/predictions backed by store.
func WithHistory(store drepo.PredictionStore) HandlerOption {
	return func(h *PredictionEchoHandler) { h.history = store }
}

// WithCandles enables GET /api/candles.
func WithCandles(uc candleReader) HandlerOption {
	return func(h *PredictionEchoHandler) { h.candles = uc }
}

// WithBatch enables GET /api/signals. It shares the real-time rate limiter.
func WithBatch(b batchPredictor) HandlerOption {
	return func(h *PredictionEchoHandler) { h.batch = b }
}

func NewPredictionEchoHandler(logger *applogger.Logger, pred predictor, realtime realtimePredictor, opts ...HandlerOption) *PredictionEchoHandler {
	if logger == nil {
		logger = applogger.NewNop()
	}
	h := &PredictionEchoHandler{logger: logger, pred: pred, realtime: realtime}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ xhttp.Handler = (*PredictionEchoHandler)(nil)

func (h *PredictionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/predict", h.Predict)
	e.GET("/real_time_prediction", h.RealtimePrediction)
	e.GET("/api/predictions", h.History)
	e.GET("/api/candles", h.Candles)
	e.GET("/api/signals", h.Signals)
}

// Predict scores caller supplied OHLCV arrays.
func (h *PredictionEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.pred.Predict(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// RealtimePrediction scores the latest market window of a symbol.
func (h *PredictionEchoHandler) RealtimePrediction(c echo.Context) error {
	if !h.allow(c) {
		return rateLimited(c)
	}

	req := &models.RealtimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.realtime.Predict(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, "real_time_prediction", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// History lists recently logged predictions.
func (h *PredictionEchoHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("prediction history is not enabled"))
	}

	req := &models.PredictionHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol, err := models.NormalizeSymbolOrEmpty(req.Symbol)
	if err != nil {
		return h.errorResponse(c, "history", err)
	}

	rows, err := h.history.Recent(c.Request().Context(), symbol, req.Limit)
	if err != nil {
		return h.errorResponse(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Candles returns the market data a real-time prediction would read.
func (h *PredictionEchoHandler) Candles(c echo.Context) error {
	if h.candles == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("candles endpoint is not enabled"))
	}

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, aerr := queryTime("from", req.From)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	to, aerr := queryTime("to", req.To)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:   req.Symbol,
		From:     from,
		To:       to,
		Interval: drepo.Interval(req.Interval),
		Limit:    req.Limit,
	})
	if err != nil {
		return h.errorResponse(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Signals runs real-time predictions for a comma separated list of symbols.
func (h *PredictionEchoHandler) Signals(c echo.Context) error {
	if h.batch == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("batch signals are not enabled"))
	}
	if !h.allow(c) {
		return rateLimited(c)
	}

	req := &models.BatchRealtimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.batch.Predict(c.Request().Context(), usecase.BatchParams{
		Symbols:    strings.Split(req.Symbols, ","),
		WindowSize: req.WindowSize,
		Interval:   req.Interval,
		AsOf:       req.AsOf,
	})
	if err != nil {
		return h.errorResponse(c, "signals", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionEchoHandler) allow(c echo.Context) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()) {
		return true
	}
	h.logger.Warn("request rate limited", applogger.String("path", c.Path()), applogger.String("remote", c.RealIP()))
	return false
}

func rateLimited(c echo.Context) error {
	return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests, retry later"))
}

// queryTime parses an optional time parameter. Empty yields the zero time.
func queryTime(field, raw string) (time.Time, *xhttp.AppError) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseTime(raw)
	if !ok {
		return time.Time{}, xhttp.BadRequestError("ERR_TIME_FORMAT", field, "expected RFC3339, YYYY-MM-DD or unix seconds")
	}
	return t, nil
}

// errorResponse maps caller and data errors to 400 and everything else to 500.
func (h *PredictionEchoHandler) errorResponse(c echo.Context, op string, err error) error {
	if models.IsClientError(err) {
		h.logger.Debug("prediction rejected", applogger.String("op", op), applogger.Error(err))
		return xhttp.AppErrorResponse(c, clientError(err))
	}
	h.logger.Error("prediction failed", applogger.String("op", op), applogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

func clientError(err error) *xhttp.AppError {
	var shape *models.InputShapeError
	if errors.As(err, &shape) {
		ae := xhttp.BadRequestError("ERR_INPUT_SHAPE", shape.Field, shape.Error())
		if shape.Reason == "" {
			ae.WithParam("expected", shape.Expected).WithParam("actual", shape.Actual)
		}
		return ae.WithError(err)
	}
	var insufficient *models.InsufficientDataError
	if errors.As(err, &insufficient) {
		return xhttp.BadRequestError("ERR_INSUFFICIENT_DATA", "", insufficient.Error()).
			WithParam("expected", insufficient.Expected).
			WithParam("actual", insufficient.Actual).
			WithError(err)
	}
	return xhttp.BadRequestError("ERR_DATA_QUALITY", "", err.Error()).WithError(err)
}
