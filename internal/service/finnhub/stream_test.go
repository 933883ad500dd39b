package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeFeed upgrades one connection, records subscriptions, and pushes
// a single trade frame per subscribed symbol.
func fakeFeed(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()
	subs := make(chan string, 16)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg struct {
				Type   string `json:"type"`
				Symbol string `json:"symbol"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "subscribe" {
				continue
			}
			subs <- msg.Symbol
			frame, _ := json.Marshal(wsMessage{
				Type: "trade",
				Data: []wsTrade{{S: msg.Symbol, P: 190.25, V: 100, T: 1700000000000}},
			})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, subs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestQuoteStreamDeliversTrades(t *testing.T) {
	srv, subs := fakeFeed(t)
	s := NewQuoteStream("test-key", wsURL(srv), []string{"AAPL"}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if !s.IsConnected() {
		t.Fatal("connected stream reports disconnected")
	}
	if err := s.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case sym := <-subs:
		if sym != "AAPL" {
			t.Fatalf("subscribed to %q", sym)
		}
	case <-ctx.Done():
		t.Fatal("no subscribe message received")
	}

	quotes, errs := s.Read(ctx)
	select {
	case q := <-quotes:
		if q.Ticker != "AAPL" || q.Price != 190.25 || q.Source != "finnhub" {
			t.Fatalf("quote: %+v", q)
		}
		if q.Timestamp.Unix() != 1700000000 {
			t.Fatalf("timestamp: %v", q.Timestamp)
		}
	case err := <-errs:
		t.Fatalf("stream error: %v", err)
	case <-ctx.Done():
		t.Fatal("no quote received")
	}
}

func TestQuoteStreamSubscribeBeforeConnect(t *testing.T) {
	s := NewQuoteStream("test-key", "ws://unused", []string{"AAPL"}, 0)
	if err := s.Subscribe(context.Background()); err == nil {
		t.Fatal("subscribe on unconnected stream accepted")
	}
}

func TestQuoteStreamReadErrorOnClose(t *testing.T) {
	srv, _ := fakeFeed(t)
	s := NewQuoteStream("test-key", wsURL(srv), nil, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	_, errs := s.Read(ctx)
	s.Close()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("want read error after close")
		}
	case <-ctx.Done():
		t.Fatal("read loop did not surface the closed connection")
	}
}
