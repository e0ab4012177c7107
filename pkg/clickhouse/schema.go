package clickhouse

import "fmt"

const (
	TicksTable       = "market_ticks"
	PredictionsTable = "predictions"
)

// Schema returns the DDL for the tick and prediction tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts       DateTime64(3),
    symbol   LowCardinality(String),
    price    Float64,
    volume   Float64,
    source   LowCardinality(String),
    event_id String
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts, event_id)`, database, TicksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id              UUID,
    created_at      DateTime64(3),
    symbol          LowCardinality(String),
    source          LowCardinality(String),
    window_size     UInt16,
    position        Float64,
    action          Float64,
    confidence      Float64,
    profit_and_loss Int64,
    sharpe_ratio    Float64,
    max_drawdown    Float64,
    total_time_ms   Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (symbol, created_at)`, database, PredictionsTable),
	}
}
