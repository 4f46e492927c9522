// Package channel provides the bidirectional message channel a session
// streams audio over and receives server messages from.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("channel closed")

// Frame is one inbound message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is an open channel. Writes are safe for concurrent use; Read must be
// called from a single goroutine.
type Conn interface {
	WriteText([]byte) error
	WriteBinary([]byte) error
	Read() (Frame, error)
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer opens gorilla/websocket connections.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := *websocket.DefaultDialer
	if d.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = d.HandshakeTimeout
	}

	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (c *wsConn) WriteText(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

func (c *wsConn) WriteBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *wsConn) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.ws.WriteMessage(kind, data)
}

func (c *wsConn) Read() (Frame, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: kind == websocket.BinaryMessage, Data: data}, nil
}

// Close sends a normal closure frame best-effort and releases the socket.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// IsClosure reports whether err marks an orderly or local channel shutdown
// rather than a transport failure.
func IsClosure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// SocketURL maps an http(s) server base to its ws(s) channel URL.
func SocketURL(server, endpoint string) string {
	server = strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(server, "https"):
		server = "wss" + strings.TrimPrefix(server, "https")
	case strings.HasPrefix(server, "http"):
		server = "ws" + strings.TrimPrefix(server, "http")
	}
	return server + endpoint
}
