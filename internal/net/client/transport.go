package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 5 * time.Second
	maxFrameBytes    = 1 << 20
)

// Conn is the minimal transport surface the client needs. The production
// implementation wraps a gorilla websocket; tests substitute an in-memory one.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn to the given endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(c.writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

type wsDialer struct {
	writeWait time.Duration
}

func newWSDialer() *wsDialer {
	return &wsDialer{writeWait: defaultWriteWait}
}

func (d *wsDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return &wsConn{conn: conn, writeWait: d.writeWait}, nil
}

// endpointURL appends identity and region to the configured server URL.
func endpointURL(server, identity, region string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("id", identity)
	q.Set("region", region)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
