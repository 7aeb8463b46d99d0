package sessionclient

import (
	"context"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"veilmatch/internal/ws"
)

// Conn is one live channel to the server. The indirection exists so the
// session logic can be driven by a fake in tests; production always uses
// the nhooyr dialer below.
type Conn interface {
	ReadEnvelope(ctx context.Context) (ws.Envelope, error)
	WriteEnvelope(ctx context.Context, env ws.Envelope) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc performs one handshake against the given channel URL.
type DialFunc func(ctx context.Context, url string) (Conn, error)

const dialTimeout = 10 * time.Second

func dialNhooyr(ctx context.Context, url string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, err
	}
	return &nhooyrConn{c: c}, nil
}

type nhooyrConn struct {
	c *websocket.Conn
}

func (n *nhooyrConn) ReadEnvelope(ctx context.Context) (ws.Envelope, error) {
	var env ws.Envelope
	err := wsjson.Read(ctx, n.c, &env)
	return env, err
}

func (n *nhooyrConn) WriteEnvelope(ctx context.Context, env ws.Envelope) error {
	return wsjson.Write(ctx, n.c, env)
}

func (n *nhooyrConn) Ping(ctx context.Context) error {
	return n.c.Ping(ctx)
}

func (n *nhooyrConn) Close(code websocket.StatusCode, reason string) error {
	return n.c.Close(code, reason)
}
