// Package stream pushes playback to live map clients over websockets and
// accepts their commands.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/morea-atlas/campaign-player/internal/dispatcher"
	"github.com/morea-atlas/campaign-player/pkg/streaming"
)

const (
	sendChSize      = 256
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxMessageSize  = 64 << 10
	snapshotTimeout = 2 * time.Second
)

// Dispatcher runs client commands. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// SnapshotFunc returns the state a newly connected client starts from.
type SnapshotFunc func(ctx context.Context) (streaming.SnapshotPayload, error)

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	upgrader ws.Upgrader
	commands Dispatcher
	snapshot SnapshotFunc
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. commands and snapshot may be nil.
func NewHub(commands Dispatcher, snapshot SnapshotFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		commands: commands,
		snapshot: snapshot,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects. ?codec=msgpack selects binary frames.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	codec, err := CodecFor(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, codec, h.logger)
	if !h.register(c) {
		c.close()
		return
	}
	h.logger.Info("Stream client connected", "remote", r.RemoteAddr, "codec", codec.Name())

	if h.snapshot != nil {
		ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
		snap, err := h.snapshot(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("Snapshot failed", "error", err)
		} else {
			h.sendTo(c, streaming.TypeSnapshot, snap)
		}
	}

	go c.writeLoop()
	h.readLoop(c)

	h.unregister(c)
	c.close()
	h.logger.Info("Stream client disconnected", "remote", r.RemoteAddr)
}

// Broadcast sends one message to every client. Encoding happens once per
// codec in use. Clients whose queue is full miss the message.
func (h *Hub) Broadcast(msgType string, payload any) {
	env := streaming.Envelope{Type: msgType, Payload: payload}
	encoded := make(map[string][]byte, 2)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		data, ok := encoded[c.codec.Name()]
		if !ok {
			var err error
			data, err = c.codec.Marshal(env)
			if err != nil {
				h.logger.Error("Failed to encode message", "type", msgType, "codec", c.codec.Name(), "error", err)
				continue
			}
			encoded[c.codec.Name()] = data
		}
		c.send(data)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) sendTo(c *client, msgType string, payload any) {
	data, err := c.codec.Marshal(streaming.Envelope{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	c.send(data)
}

// readLoop decodes command envelopes and answers each with an ack.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env streaming.CommandEnvelope
		if err := c.codec.Unmarshal(message, &env); err != nil {
			h.logger.Debug("Undecodable client message", "error", err)
			continue
		}
		if env.Type != streaming.TypeCommand {
			h.logger.Debug("Ignoring client message", "type", env.Type)
			continue
		}

		ack := streaming.AckPayload{For: env.Payload.Command, ID: env.Payload.ID}
		if h.commands == nil {
			ack.Error = "commands disabled"
		} else {
			result, err := h.commands.Dispatch(dispatcher.Event{
				Command:   env.Payload.Command,
				Args:      env.Payload.Args,
				Source:    "ws",
				Timestamp: time.Now(),
			})
			ack.Result = result
			if err != nil {
				ack.Error = err.Error()
			}
		}
		h.sendTo(c, streaming.TypeAck, ack)
	}
}
