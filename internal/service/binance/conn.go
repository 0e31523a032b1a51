package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
)

// Dialer opens connections to the Binance public market-data endpoint.
type Dialer struct {
	url         string
	idleTimeout time.Duration
}

// NewDialer creates a MarketDialer for the given websocket endpoint.
func NewDialer(url string, idleTimeout time.Duration) *Dialer {
	return &Dialer{url: url, idleTimeout: idleTimeout}
}

// Dial opens one websocket connection.
func (d *Dialer) Dial(ctx context.Context) (drepo.MarketConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance dial: %w", err)
	}
	return &Conn{conn: conn, idleTimeout: d.idleTimeout}, nil
}

// Conn is one live Binance websocket connection.
type Conn struct {
	conn        *websocket.Conn
	idleTimeout time.Duration
	nextID      int
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Subscribe sends one SUBSCRIBE request listing every channel.
func (c *Conn) Subscribe(ctx context.Context, channels []string) error {
	c.nextID++
	req := subscribeRequest{Method: "SUBSCRIBE", Params: channels, ID: c.nextID}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("binance subscribe: %w", err)
	}
	return nil
}

// ReadEvent blocks for the next frame and decodes it. Control frames,
// subscription acks and malformed payloads yield (nil, nil).
func (c *Conn) ReadEvent(ctx context.Context) (*models.CandleEvent, error) {
	if c.idleTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("binance read: %w", err)
	}
	ev, _ := DecodeEvent(b)
	return ev, nil
}

// Close sends a close frame best-effort and tears down the connection.
func (c *Conn) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
