package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"pricelink/src/broadcast"
	"pricelink/src/logger"
	"pricelink/src/validation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errSlowConsumer = errors.New("slow consumer")

// -----------------------------------------------------------------------------
// wsClient Structure
// -----------------------------------------------------------------------------

// wsEvent is the wire frame: the event name plus its structured payload.
type wsEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan wsEvent
	quit   chan struct{}
	closed atomic.Bool
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func newWSClient(conn *websocket.Conn, log *logger.Logger) *wsClient {
	return &wsClient{
		conn: conn,
		// Buffered so a burst of pushes doesn't stall the broadcaster
		send:   make(chan wsEvent, sendBufferSize),
		quit:   make(chan struct{}),
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Push implements interfaces.ISubscriberChannel. It must never block the
// publish loop: a full send buffer means the consumer cannot keep up and
// the connection is reported broken instead of waited on.
func (c *wsClient) Push(event string, payload interface{}) error {
	if c.closed.Load() {
		return errChannelClosed
	}

	select {
	case c.send <- wsEvent{Event: event, Data: payload}:
		return nil
	case <-c.quit:
		return errChannelClosed
	default:
		return errSlowConsumer
	}
}

// -----------------------------------------------------------------------------

// Close implements interfaces.ISubscriberChannel. Idempotent.
func (c *wsClient) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.quit)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends events to the client, serializing all writes
// -----------------------------------------------------------------------------

func (c *wsClient) writePump(sub *broadcast.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		sub.Close()
	}()

	for {
		select {
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			// Protocol-level ping on top of the application ping event
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// -----------------------------------------------------------------------------
// readPump - acts as a watchdog for the connection
// -----------------------------------------------------------------------------

func (c *wsClient) readPump(sub *broadcast.Subscription) {
	defer func() {
		sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("WebSocket error: %v", err)
			}
			return
		}
		// Inbound frames carry no commands; the subscription is fixed
		// at connect time.
	}
}

// -----------------------------------------------------------------------------
// Handler
// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	apiKey := apiKeyFromContext(c)
	plan := planFromContext(c)

	list := validation.NormalizeSymbolsCSV(c.DefaultQuery("symbols", ""))
	if len(list) > plan.MaxSymbols {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": fmt.Sprintf("too many symbols, max %d for plan %s", plan.MaxSymbols, plan.Name),
		})
		return
	}
	fiat := c.DefaultQuery("fiat", "")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newWSClient(conn, s.Logger)
	sub, err := s.Broadcaster.Subscribe(apiKey, list, fiat, client)
	if err != nil {
		// Already upgraded; report the rejection in-band and hang up.
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(wsEvent{Event: "error", Data: gin.H{"ok": false, "error": err.Error()}})
		conn.Close()
		return
	}

	go client.writePump(sub)
	client.readPump(sub)
}
