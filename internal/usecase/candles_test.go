package usecase

import (
	"context"
	"testing"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCandles(src *fakeSource) *CandlesUseCase {
	uc := NewCandlesUseCase(src)
	uc.now = func() time.Time { return testNow }
	return uc
}

func TestGetCandlesDefaults(t *testing.T) {
	src := &fakeSource{candles: dailyCandles(testNow, 150, linear)}
	uc := newTestCandles(src)

	res, err := uc.GetCandles(context.Background(), GetCandlesParams{Symbol: "aapl", Interval: "5m"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, "1d", res.Interval, "unknown interval falls back to the default")
	assert.Equal(t, "fake", res.Source)
	assert.Equal(t, testNow, res.To)
	assert.Equal(t, testNow.Add(-100*24*time.Hour), res.From)
	require.Len(t, src.calls, 1)
	assert.Equal(t, res.From, src.calls[0])
	assert.Equal(t, res.Count, len(res.Candles))
	assert.LessOrEqual(t, res.Count, 100)
}

func TestGetCandlesKeepsMostRecent(t *testing.T) {
	src := &fakeSource{candles: dailyCandles(testNow, 30, linear)}
	uc := newTestCandles(src)

	res, err := uc.GetCandles(context.Background(), GetCandlesParams{
		Symbol:   "AAPL",
		From:     testNow.AddDate(0, 0, -60),
		Interval: drepo.Interval1d,
		Limit:    5,
	})
	require.NoError(t, err)
	require.Len(t, res.Candles, 5)
	assert.Equal(t, src.candles[29].Bucket, res.Candles[4].Bucket)
	assert.Equal(t, src.candles[25].Bucket, res.Candles[0].Bucket)
}

func TestGetCandlesRejectsInvertedRange(t *testing.T) {
	uc := newTestCandles(&fakeSource{})
	_, err := uc.GetCandles(context.Background(), GetCandlesParams{
		Symbol: "AAPL",
		From:   testNow,
		To:     testNow.AddDate(0, 0, -1),
	})
	var shape *models.InputShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "from", shape.Field)
}

func TestGetCandlesErrors(t *testing.T) {
	_, err := newTestCandles(&fakeSource{}).GetCandles(context.Background(), GetCandlesParams{Symbol: "A B"})
	assert.Error(t, err)

	_, err = newTestCandles(&fakeSource{err: errBoom}).GetCandles(context.Background(), GetCandlesParams{Symbol: "AAPL"})
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "get candles")
}
