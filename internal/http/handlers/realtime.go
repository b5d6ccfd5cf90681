package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"transitbook/internal/domain"
	"transitbook/internal/events"
	"transitbook/internal/http/middleware"
	"transitbook/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// StreamMessage is one channel event as sent to websocket clients.
type StreamMessage struct {
	Channel   string      `json:"channel"`
	Kind      events.Kind `json:"kind"`
	Entity    any         `json:"entity"`
	Timestamp time.Time   `json:"timestamp"`
}

type streamClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// push never blocks the emitter. A client that cannot keep up is dropped.
func (c *streamClient) push(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.closed = true
		close(c.send)
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump only watches for the peer going away; clients never send data.
func (c *streamClient) readPump() {
	defer c.close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(h.AllowedOrigins, origin)
		},
	}
}

// GET /api/me/realtime/:collection streams the caller's channel for one
// collection over a websocket.
func (h *Handler) Realtime(c *gin.Context) {
	collection := c.Param("collection")
	if !events.IsCollection(collection) {
		RespondDomainError(c, domain.ValidationError{Field: "collection", Msg: "unknown collection " + collection})
		return
	}
	owner := middleware.Owner(c)
	channel := events.Channel(collection, owner)
	reqID := middleware.GetRequestID(c)

	h.Store.EnsureSeed(owner)

	client := &streamClient{send: make(chan []byte, sendBuffer)}
	// subscribe before the handshake completes so nothing emitted after the
	// client sees the upgrade response is missed; both buses confirm the
	// subscription before Subscribe returns
	sub := h.Bus.Subscribe(channel, func(ev events.Event) {
		data, err := json.Marshal(StreamMessage{
			Channel:   channel,
			Kind:      ev.Kind,
			Entity:    ev.Entity,
			Timestamp: utils.NowUTC(),
		})
		if err != nil {
			utils.Logger().Error("encode stream message", zap.String("channel", channel), zap.Error(err))
			return
		}
		client.push(data)
	})
	defer sub.Unsubscribe()

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		utils.LogEvent(reqID, "realtime", "upgrade", "failed: "+err.Error())
		return
	}
	defer conn.Close()
	client.conn = conn

	utils.LogEvent(reqID, "realtime", "subscribe", "channel="+channel)
	go client.readPump()
	client.writePump()
	utils.LogEvent(reqID, "realtime", "unsubscribe", "channel="+channel)
}
