package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeSignal/internal/domain/models"
	domrepo "TradeSignal/internal/domain/repository"
	applogger "TradeSignal/pkg/logger"
)

// CHCandleStore aggregates ingested ticks into OHLCV candles. It implements MarketDataSource.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.MarketDataSource = (*CHCandleStore)(nil)

// NewCHCandleStore reads ticks from table (database qualified).
func NewCHCandleStore(db *sql.DB, table string) *CHCandleStore {
	return &CHCandleStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) Name() string { return "clickhouse" }

func (s *CHCandleStore) FetchCandles(ctx context.Context, symbol string, from, to time.Time, iv domrepo.Interval) ([]models.Candle, error) {
	start := time.Now()
	q := buildCandleQuery(s.table, iv)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_candles query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.String("interval", string(iv)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse fetch_candles ok",
			applogger.String("symbol", symbol),
			applogger.String("interval", string(iv)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func buildCandleQuery(table string, iv domrepo.Interval) string {
	const qtpl = `
        SELECT toStartOfInterval(ts, INTERVAL %s) AS bucket, symbol,
               argMin(price, ts) AS open, max(price) AS high, min(price) AS low,
               argMax(price, ts) AS close, sum(volume) AS vol
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        GROUP BY bucket, symbol
        ORDER BY bucket ASC
    `
	return fmt.Sprintf(qtpl, sqlInterval(iv), table)
}

func sqlInterval(iv domrepo.Interval) string {
	switch iv {
	case domrepo.Interval1m:
		return "1 MINUTE"
	case domrepo.Interval1h:
		return "1 HOUR"
	default:
		return "1 DAY"
	}
}
