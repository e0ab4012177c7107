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

const maxRecentPredictions = 500

// CHPredictionStore keeps the prediction log in ClickHouse.
type CHPredictionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)

func NewCHPredictionStore(db *sql.DB, table string) *CHPredictionStore {
	return &CHPredictionStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *CHPredictionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPredictionStore) Save(ctx context.Context, rec models.PredictionRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, created_at, symbol, source, window_size, position, action, confidence,
        profit_and_loss, sharpe_ratio, max_drawdown, total_time_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.CreatedAt.UTC(),
		rec.Symbol,
		rec.Source,
		uint16(rec.WindowSize),
		rec.Position,
		rec.Action,
		rec.Confidence,
		rec.ProfitAndLoss,
		rec.SharpeRatio,
		rec.MaxDrawdown,
		rec.TotalTimeMs,
	)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

// Recent returns the newest records first. An empty symbol matches every symbol.
func (s *CHPredictionStore) Recent(ctx context.Context, symbol string, limit int) ([]models.PredictionRecord, error) {
	start := time.Now()
	q, args := buildRecentQuery(s.table, symbol, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent_predictions query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	out := make([]models.PredictionRecord, 0, limit)
	for rows.Next() {
		var (
			r  models.PredictionRecord
			ws uint16
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Symbol, &r.Source, &ws, &r.Position, &r.Action,
			&r.Confidence, &r.ProfitAndLoss, &r.SharpeRatio, &r.MaxDrawdown, &r.TotalTimeMs); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		r.WindowSize = int(ws)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse recent_predictions ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func buildRecentQuery(table, symbol string, limit int) (string, []interface{}) {
	if limit <= 0 || limit > maxRecentPredictions {
		limit = maxRecentPredictions
	}
	const cols = `toString(id), created_at, symbol, source, window_size, position, action, confidence,
        profit_and_loss, sharpe_ratio, max_drawdown, total_time_ms`
	if symbol == "" {
		return fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT ?", cols, table), []interface{}{limit}
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE symbol = ? ORDER BY created_at DESC LIMIT ?", cols, table),
		[]interface{}{symbol, limit}
}

// KafkaPredictionPublisher publishes prediction records keyed by symbol.
type KafkaPredictionPublisher struct {
	producer producer
	topic    string
}

var _ domrepo.PredictionSink = (*KafkaPredictionPublisher)(nil)

func NewKafkaPredictionPublisher(p producer, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: p, topic: topic}
}

func (p *KafkaPredictionPublisher) Save(ctx context.Context, rec models.PredictionRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), rec)
}
