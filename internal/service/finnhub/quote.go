package finnhub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/config"
	xhttp "TradeSignal/pkg/http"
	applogger "TradeSignal/pkg/logger"
)

// Quote is the Finnhub /quote payload. It is also the message format of the legacy market-data producer.
type Quote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// QuotePoller is a MarketStream that polls the REST quote endpoint for every symbol on a fixed interval.
// Unchanged quotes (same timestamp) are not re-emitted.
type QuotePoller struct {
	restURL  string
	apiKey   string
	symbols  []string
	interval time.Duration
	client   *xhttp.Client
	log      *applogger.Logger

	mu        sync.Mutex
	connected bool
	lastSeen  map[string]int64
}

func NewQuotePoller(cfg *config.Config, l *applogger.Logger, opts ...xhttp.ClientOption) *QuotePoller {
	interval := cfg.Finnhub.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &QuotePoller{
		restURL:  cfg.Finnhub.RestURL,
		apiKey:   cfg.Finnhub.APIKey,
		symbols:  cfg.Finnhub.Symbols,
		interval: interval,
		client:   xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(5 * time.Second)}, opts...)...),
		log:      l,
		lastSeen: make(map[string]int64),
	}
}

// FetchQuote calls GET {rest_url}/quote?symbol=...&token=...
func (p *QuotePoller) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         p.restURL + "/quote",
		QueryParams: map[string][]string{"symbol": {symbol}, "token": {p.apiKey}},
	}, &q)
	if err != nil {
		return nil, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}
	return &q, nil
}

func (p *QuotePoller) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *QuotePoller) Subscribe(ctx context.Context) error { return nil }

func (p *QuotePoller) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(ticks)
		defer close(errs)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			for _, s := range p.symbols {
				q, err := p.FetchQuote(ctx, s)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					// a single failing symbol should not stop the stream
					p.log.Warn("quote poll failed", applogger.String("symbol", s), applogger.Error(err))
					continue
				}
				if t := p.toTick(s, q); t != nil {
					select {
					case ticks <- t:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ticks, errs
}

func (p *QuotePoller) toTick(symbol string, q *Quote) *models.Tick {
	// Finnhub answers unknown symbols with an all-zero quote
	if q.Current <= 0 || q.Timestamp == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSeen[symbol] == q.Timestamp {
		return nil
	}
	p.lastSeen[symbol] = q.Timestamp
	return &models.Tick{Symbol: symbol, Timestamp: q.Timestamp, Price: q.Current}
}

func (p *QuotePoller) Reconnect(ctx context.Context) error { return p.Connect(ctx) }

func (p *QuotePoller) Close() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *QuotePoller) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

var _ drepo.MarketStream = (*QuotePoller)(nil)
