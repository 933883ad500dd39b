package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"

	"github.com/gorilla/websocket"
)

// QuoteStream delivers live trades from the Finnhub WebSocket feed as
// normalized quotes. It is a streaming companion to the polled
// GetQuote path; the gateway's ingestion collaborator consumes it to
// keep last-price gauges warm.
type QuoteStream struct {
	apiKey       string
	wsURL        string
	symbols      []string
	pingInterval time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewQuoteStream creates a stream for the given symbols.
func NewQuoteStream(apiKey, wsURL string, symbols []string, pingInterval time.Duration) *QuoteStream {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &QuoteStream{
		apiKey:       apiKey,
		wsURL:        wsURL,
		symbols:      symbols,
		pingInterval: pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *QuoteStream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.wsURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	return nil
}

// Subscribe subscribes to the configured symbols.
func (s *QuoteStream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("finnhub stream not connected")
	}
	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	return nil
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// Read streams quotes and errors until ctx is cancelled or the
// connection drops. Quotes are dropped, not buffered, on backpressure.
func (s *QuoteStream) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("finnhub stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("finnhub stream read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-trade frames
					continue
				}
				if m.Type != "trade" {
					continue
				}
				for _, d := range m.Data {
					q := &models.Quote{
						Ticker:    d.S,
						Price:     d.P,
						Timestamp: time.Unix(d.T/1000, 0).UTC(),
						Source:    providerName,
					}
					select {
					case quotes <- q:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect drops the current connection and re-establishes the
// subscription.
func (s *QuoteStream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WebSocket connection.
func (s *QuoteStream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *QuoteStream) IsConnected() bool { return s.connected }
