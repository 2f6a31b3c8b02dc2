package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"OrderPulse/pkg/ws"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// Conn 一条已建立的事件流连接
type Conn interface {
	ReadEnvelope() (ws.Envelope, error)
	WriteEnvelope(env ws.Envelope) error
	Close() error
}

// Dialer 建立连接，token 在握手时携带
type Dialer interface {
	Dial(ctx context.Context, rawURL string, token string) (Conn, error)
}

type gorillaDialer struct {
	d           *websocket.Dialer
	readTimeout time.Duration
}

// NewGorillaDialer readTimeout 内没有收到任何帧（包括 ping）视为 ping timeout
func NewGorillaDialer(handshakeTimeout, readTimeout time.Duration) Dialer {
	return &gorillaDialer{
		d: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		readTimeout: readTimeout,
	}
}

func (g *gorillaDialer) Dial(ctx context.Context, rawURL string, token string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	// 浏览器 WebSocket 不能带自定义 Header，服务端同时接受 query 和 Authorization
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := g.d.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected (%s): %w", resp.Status, err)
		}
		return nil, err
	}

	gc := &gorillaConn{conn: conn, readTimeout: g.readTimeout}
	conn.SetReadLimit(maxFrameSize)
	conn.SetPingHandler(gc.onPing)
	return gc, nil
}

type gorillaConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *gorillaConn) onPing(appData string) error {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	if err == nil || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return nil
	}
	return err
}

func (c *gorillaConn) ReadEnvelope() (ws.Envelope, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return ws.Envelope{}, &DisconnectError{Reason: DisconnectReason(err), Err: err}
	}
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ws.Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return env, nil
}

func (c *gorillaConn) WriteEnvelope(env ws.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *gorillaConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// DisconnectReason 把读错误归类成断开原因
func DisconnectReason(err error) string {
	var de *DisconnectError
	if errors.As(err, &de) {
		return de.Reason
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return ReasonServerDisconnect
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonPingTimeout
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ReasonTransportClose
	}
	return ReasonTransportError
}
