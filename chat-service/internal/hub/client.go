package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSendTimeout  = errors.New("send buffer full")
)

// Client is one upgraded websocket. Writes go through a bounded buffer
// drained by WritePump; reads happen in ReadPump.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	done   chan struct{}
	config config.WebSocketConfig

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		config: cfg,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues payload for the write pump. A client whose buffer stays full
// until ctx is done is considered too slow and is closed.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrClientClosed
	case <-ctx.Done():
		c.CloseWithReason(websocket.CloseTryAgainLater, "send timeout")
		return ErrSendTimeout
	}
}

// CloseWithReason asks the write pump to send a close frame and release the
// connection. Only the first call has any effect.
func (c *Client) CloseWithReason(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closed)
	})
}

// Done is closed once the write pump has released the connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump delivers text frames to handle until the peer goes away or the
// client is closed. A clean close returns nil.
func (c *Client) ReadPump(handle func(text string)) error {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return chaterr.New(chaterr.KindTransport, "read", err)
		}

		// Refresh the deadline on any traffic, not just pongs.
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		handle(string(message))
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
// It owns the underlying connection and closes it on return.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.CloseWithReason(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.closed:
			c.flush()
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				if err := c.write(websocket.CloseMessage, msg); err != nil {
					l := log.L()
					l.Debug().Err(err).Str(log.FieldConnID, c.id).Msg("close frame not delivered")
				}
			}
			return
		}
	}
}

// flush writes whatever was queued before the close was requested.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msgType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	return c.conn.WriteMessage(msgType, data)
}
