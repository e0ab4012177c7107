package marketdata

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/config"
)

// InfluxSource reads OHLCV bars written as one point per bar in a measurement tagged by ticker
// with open/high/low/close/volume fields. The bucket holds a single resolution, so the requested
// interval is not applied.
type InfluxSource struct {
	client      influxdb2.Client
	query       api.QueryAPI
	bucket      string
	measurement string
}

func NewInfluxSource(cfg *config.Config) *InfluxSource {
	ic := cfg.MarketData.InfluxDB
	client := influxdb2.NewClient(ic.URL, ic.Token)
	return &InfluxSource{
		client:      client,
		query:       client.QueryAPI(ic.Org),
		bucket:      ic.Bucket,
		measurement: ic.Measurement,
	}
}

func (s *InfluxSource) Name() string { return "influxdb" }

// FetchCandles queries [from, to) for symbol. The symbol is interpolated into Flux, so it is
// checked against models.NormalizeSymbol first.
func (s *InfluxSource) FetchCandles(ctx context.Context, symbol string, from, to time.Time, _ drepo.Interval) ([]models.Candle, error) {
	if _, err := models.NormalizeSymbol(symbol); err != nil {
		return nil, err
	}
	result, err := s.query.Query(ctx, s.fluxQuery(symbol, from, to))
	if err != nil {
		return nil, fmt.Errorf("influx query %s: %w", symbol, err)
	}
	defer result.Close()

	var out []models.Candle
	for result.Next() {
		rec := result.Record()
		out = append(out, candleFromValues(symbol, rec.Time(), rec.Values()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influx read %s: %w", symbol, result.Err())
	}
	return out, nil
}

func (s *InfluxSource) fluxQuery(symbol string, from, to time.Time) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> filter(fn: (r) => r.ticker == "%s")
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: false)
	`, s.bucket, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), s.measurement, symbol)
}

// candleFromValues converts one pivoted row. Missing or non-numeric fields become NaN.
func candleFromValues(symbol string, t time.Time, v map[string]interface{}) models.Candle {
	return models.Candle{
		Bucket: t.UTC(),
		Symbol: symbol,
		Open:   number(v["open"]),
		High:   number(v["high"]),
		Low:    number(v["low"]),
		Close:  number(v["close"]),
		Volume: number(v["volume"]),
	}
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return math.NaN()
	}
}

// Close releases the underlying HTTP resources.
func (s *InfluxSource) Close() {
	s.client.Close()
}

var _ drepo.MarketDataSource = (*InfluxSource)(nil)
