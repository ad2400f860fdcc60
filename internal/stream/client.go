package stream

import (
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// client is one websocket peer with a single write goroutine.
type client struct {
	conn   *ws.Conn
	codec  Codec
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *ws.Conn, codec Codec, logger *slog.Logger) *client {
	return &client{
		conn:   conn,
		codec:  codec,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// send queues data for the write loop. Non-blocking; drops if the queue is full.
func (c *client) send(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.logger.Warn("Stream client too slow, dropping message", "remote", c.conn.RemoteAddr().String())
	}
}

// writeLoop drains sendCh and keeps the connection alive with pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.logger.Debug("WebSocket write error", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// close sends a close frame and releases the connection. Safe to call
// more than once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
}
