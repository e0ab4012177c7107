package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	"TradeSignal/pkg/config"
	applogger "TradeSignal/pkg/logger"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
	tickBuffer       = 1024
	maxReconnectWait = time.Minute
)

// ErrNotConnected is returned by operations that need an open socket.
var ErrNotConnected = errors.New("finnhub: not connected")

// Client streams trades from the Finnhub WebSocket. The socket is pinged every PingInterval;
// a peer that stops answering for two intervals fails the read and triggers a reconnect.
type Client struct {
	apiKey       string
	websocketURL string
	symbols      []string
	retryDelay   time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer
	log          *applogger.Logger

	mu        sync.Mutex // guards conn and serializes writes
	conn      *websocket.Conn
	connected bool
	failures  int
	dropped   int64
}

// New creates a Finnhub MarketStream.
func New(cfg *config.Config, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Client{
		apiKey:       cfg.Finnhub.APIKey,
		websocketURL: cfg.Finnhub.WebSocketURL,
		symbols:      cfg.Finnhub.Symbols,
		retryDelay:   cfg.Finnhub.ReconnectDelay,
		pingInterval: cfg.Finnhub.PingInterval,
		dialer:       &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: websocket.DefaultDialer.Proxy},
		log:          l,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	if c.pingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
		})
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("finnhub connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe asks for trades of every configured symbol.
func (c *Client) Subscribe(ctx context.Context) error {
	for _, s := range c.symbols {
		if err := c.send(subscription{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("finnhub subscribed", applogger.Strings("symbols", c.symbols))
	return nil
}

type subscription struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func (c *Client) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
	Msg  string    `json:"msg"`
}

// decodeTrades turns a trade frame into ticks. Other and unreadable frames yield nothing.
func decodeTrades(b []byte) []*models.Tick {
	ticks, _ := decodeFrame(b)
	return ticks
}

// decodeFrame reports malformed frames and error frames sent by the server.
func decodeFrame(b []byte) ([]*models.Tick, error) {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("finnhub decode: %w", err)
	}
	switch m.Type {
	case "trade":
		out := make([]*models.Tick, 0, len(m.Data))
		for _, d := range m.Data {
			if d.S == "" || d.T <= 0 {
				continue
			}
			out = append(out, &models.Tick{Symbol: d.S, Timestamp: d.T / 1000, Price: d.P, Volume: d.V})
		}
		return out, nil
	case "error":
		return nil, fmt.Errorf("finnhub: %s", m.Msg)
	}
	return nil, nil
}

// Read streams ticks until ctx is done or the connection fails. The error channel carries at
// most one error. Ticks are dropped when the consumer falls tickBuffer behind.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, tickBuffer)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		errs <- ErrNotConnected
		close(errs)
		close(ticks)
		return ticks, errs
	}

	go c.keepAlive(ctx, conn)
	go func() {
		defer close(ticks)
		defer close(errs)
		// unblock ReadMessage when the caller goes away
		stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
		defer stop()

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			batch, ferr := decodeFrame(b)
			if ferr != nil {
				c.log.Warn("finnhub frame rejected", applogger.Int("bytes", len(b)), applogger.Error(ferr))
				continue
			}
			for _, t := range batch {
				select {
				case ticks <- t:
				default:
					c.drop(t.Symbol)
				}
			}
		}
	}()
	return ticks, errs
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn == conn
			if current {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}
			c.mu.Unlock()
			if !current {
				return
			}
		}
	}
}

func (c *Client) drop(symbol string) {
	c.mu.Lock()
	c.dropped++
	n := c.dropped
	c.mu.Unlock()
	// one warning per thousand drops
	if n%1000 == 1 {
		c.log.Warn("finnhub tick buffer full, dropping", applogger.String("symbol", symbol), applogger.Int64("dropped", n))
	}
}

// Reconnect closes the socket and dials again, waiting longer after every failed attempt.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	c.mu.Lock()
	wait := c.retryDelay << min(c.failures, 6)
	c.mu.Unlock()
	if wait > maxReconnectWait || wait <= 0 {
		wait = min(max(c.retryDelay, 0), maxReconnectWait)
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return ctx.Err()
	}

	err := c.Connect(ctx)
	if err == nil {
		err = c.Subscribe(ctx)
	}

	c.mu.Lock()
	if err != nil {
		c.failures++
	} else {
		c.failures = 0
	}
	c.mu.Unlock()
	return err
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.MarketStream = (*Client)(nil)
