package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFluxQuery(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	s := NewInfluxSource(cfg)
	defer s.Close()

	q := s.fluxQuery("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, q, `from(bucket: "stocks")`)
	assert.Contains(t, q, `range(start: 2024-01-01T00:00:00Z, stop: 2024-02-01T00:00:00Z)`)
	assert.Contains(t, q, `r._measurement == "stock_prices"`)
	assert.Contains(t, q, `r.ticker == "AAPL"`)
	assert.Contains(t, q, `pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")`)
	assert.Equal(t, "influxdb", s.Name())
}

func TestInfluxRejectsUnsafeSymbol(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	s := NewInfluxSource(cfg)
	defer s.Close()

	_, err = s.FetchCandles(context.Background(), `AAPL") |> yield(`, time.Now(), time.Now(), drepo.Interval1d)
	assert.ErrorIs(t, err, models.ErrInputShape)
}

func TestCandleFromValues(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := candleFromValues("MSFT", ts, map[string]interface{}{
		"open": 400.5, "high": 410.0, "low": 399.0, "close": 405.25, "volume": int64(1200),
	})
	assert.Equal(t, ts, c.Bucket)
	assert.Equal(t, 405.25, c.Close)
	assert.Equal(t, 1200.0, c.Volume)

	missing := candleFromValues("MSFT", ts, map[string]interface{}{"close": "n/a"})
	assert.True(t, math.IsNaN(missing.Close))
	assert.True(t, math.IsNaN(missing.Open))
}
