package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSignal/internal/domain/models"
)

func rampRequest(n int) *models.PredictRequest {
	req := &models.PredictRequest{WindowSize: n}
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		req.Close = append(req.Close, c)
		req.Low = append(req.Low, c-1)
		req.High = append(req.High, c+1)
		req.Volume = append(req.Volume, 1000+10*float64(i))
	}
	return req
}

func newTestPredictor(model *fakeInferencer, m *recordingMetrics, opts ...PredictorOption) *Predictor {
	p := NewPredictor(model, m, opts...)
	p.newID = func() string { return "pred-1" }
	p.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPredictor_Predict(t *testing.T) {
	model := &fakeInferencer{out: models.ModelOutput{Action: 0.5, Confidence: 0.8}}
	m := newRecordingMetrics()
	sink := &recordingSink{}
	p := newTestPredictor(model, m, WithSinks(sink, nil))

	req := rampRequest(30)
	req.Position = 0.2
	req.Symbol = "aapl"
	res, err := p.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pred-1", res.ID)
	assert.Equal(t, models.ModelOutput{Action: 0.5, Confidence: 0.8}, res.Prediction)
	assert.Equal(t, 0.5, res.TradingSignal.Decision.TargetPosition)
	assert.Equal(t, 0.3, res.TradingSignal.Decision.PositionChange)
	assert.Equal(t, 0.8, res.TradingSignal.Decision.Confidence)
	assert.Equal(t, 0.2, res.TradingSignal.CurrentState.Position)
	assert.Greater(t, res.PerformanceMetrics.ProfitAndLoss, int64(0))
	assert.Len(t, res.PerformanceTable.Values, 10)
	assert.GreaterOrEqual(t, res.Timing.TotalTime, res.Timing.ModelInference)
	assert.Nil(t, res.DataInfo)

	assert.Len(t, model.got, models.FeatureVectorSize)
	assert.Equal(t, 0.2, model.pos)

	require.Len(t, sink.recs, 1)
	rec := sink.recs[0]
	assert.Equal(t, "pred-1", rec.ID)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "api", rec.Source)
	assert.Equal(t, 30, rec.WindowSize)
	assert.Equal(t, res.PerformanceMetrics.ProfitAndLoss, rec.ProfitAndLoss)

	assert.Equal(t, 1, m.predictions["api/ok"])
	assert.Equal(t, 0.5, m.actions["AAPL"])
	assert.Equal(t, 1, m.stages["model_inference"])
}

func TestPredictor_UsesLastWindowRows(t *testing.T) {
	model := &fakeInferencer{out: models.ModelOutput{Action: 1, Confidence: 1}}
	sink := &recordingSink{}
	p := newTestPredictor(model, newRecordingMetrics(), WithSinks(sink))

	long := rampRequest(45)
	long.WindowSize = 30
	res, err := p.Predict(context.Background(), long)
	require.NoError(t, err)

	tail := rampRequest(45)
	tail.Close, tail.Low, tail.High, tail.Volume = tail.Close[15:], tail.Low[15:], tail.High[15:], tail.Volume[15:]
	tail.WindowSize = 30
	want, err := p.Predict(context.Background(), tail)
	require.NoError(t, err)

	assert.Equal(t, want.PerformanceMetrics, res.PerformanceMetrics)
	assert.Equal(t, 30, sink.recs[0].WindowSize)
}

func TestPredictor_ClipsModelOutput(t *testing.T) {
	model := &fakeInferencer{out: models.ModelOutput{Action: 3, Confidence: -2}}
	p := newTestPredictor(model, newRecordingMetrics())

	res, err := p.Predict(context.Background(), rampRequest(30))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Prediction.Action)
	assert.Equal(t, 0.1, res.Prediction.Confidence)
}

func TestPredictor_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name  string
		req   func() *models.PredictRequest
		field string
	}{
		{"nil", func() *models.PredictRequest { return nil }, "body"},
		{"unequal", func() *models.PredictRequest {
			r := rampRequest(30)
			r.Volume = r.Volume[:29]
			return r
		}, "volume"},
		{"too short", func() *models.PredictRequest {
			r := rampRequest(10)
			r.WindowSize = 30
			return r
		}, "close"},
		{"position", func() *models.PredictRequest {
			r := rampRequest(30)
			r.Position = 1.5
			return r
		}, "position"},
		{"symbol", func() *models.PredictRequest {
			r := rampRequest(30)
			r.Symbol = "AA PL;"
			return r
		}, "symbol"},
		{"negative price", func() *models.PredictRequest {
			r := rampRequest(30)
			r.Close[3] = -1
			return r
		}, "close"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeInferencer{}
			m := newRecordingMetrics()
			p := newTestPredictor(model, m)

			_, err := p.Predict(context.Background(), tt.req())
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInputShape))
			var shapeErr *models.InputShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.field, shapeErr.Field)
			assert.Equal(t, 0, model.hits)
			assert.Equal(t, 1, m.predictions["api/rejected"])
		})
	}
}

func TestPredictor_TooShortReportsLengths(t *testing.T) {
	p := newTestPredictor(&fakeInferencer{}, newRecordingMetrics())
	r := rampRequest(10)
	r.WindowSize = 30

	_, err := p.Predict(context.Background(), r)
	var shapeErr *models.InputShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 30, shapeErr.Expected)
	assert.Equal(t, 10, shapeErr.Actual)
}

func TestPredictor_DefaultWindowSize(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPredictor(&fakeInferencer{}, newRecordingMetrics(), WithSinks(sink))
	r := rampRequest(40)
	r.WindowSize = 0

	_, err := p.Predict(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowSize, sink.recs[0].WindowSize)
}

func TestPredictor_ModelError(t *testing.T) {
	m := newRecordingMetrics()
	p := newTestPredictor(&fakeInferencer{err: errBoom}, m)

	_, err := p.Predict(context.Background(), rampRequest(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, models.IsClientError(err))
	assert.Equal(t, 1, m.predictions["api/error"])
}

func TestPredictor_SinkFailureIsNotFatal(t *testing.T) {
	m := newRecordingMetrics()
	bad := &recordingSink{err: errBoom}
	good := &recordingSink{}
	p := newTestPredictor(&fakeInferencer{}, m, WithSinks(bad, good))

	_, err := p.Predict(context.Background(), rampRequest(30))
	require.NoError(t, err)
	assert.Len(t, good.recs, 1)
	assert.Equal(t, 1, m.errorCount("prediction_sink"))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1.23, millis(1234567*time.Nanosecond))
	assert.Equal(t, 0.0, millis(0))
}
