package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/ayusman/fingerdrive/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultTelemetryRate is the maximum number of telemetry messages per second.
const DefaultTelemetryRate = 15

const (
	telemetryWriteTimeout = time.Second
	telemetryQueueSize    = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// TelemetryMessage is the JSON pushed to websocket clients for each frame.
type TelemetryMessage struct {
	Seq        uint64               `json:"seq"`
	Timestamp  int64                `json:"timestamp"`
	FPS        int                  `json:"fps"`
	Motion     gesture.Motion       `json:"motion"`
	Symbol     string               `json:"symbol"`
	Controller gesture.Hand         `json:"controller"`
	Count      gesture.Count        `json:"count"`
	Fingers    gesture.FingerStatus `json:"fingers"`
	Hands      int                  `json:"hands"`
}

func newTelemetryMessage(r pipeline.Report) TelemetryMessage {
	return TelemetryMessage{
		Seq:        r.Seq,
		Timestamp:  r.At.UnixMilli(),
		FPS:        r.FPS,
		Motion:     r.Result.Motion,
		Symbol:     string(r.Result.Motion.Symbol()),
		Controller: r.Result.Controller,
		Count:      r.Result.Count,
		Fingers:    r.Result.Status,
		Hands:      r.Result.Hands,
	}
}

// TelemetryHub broadcasts pipeline reports to websocket clients. Publish is
// throttled by a token bucket and never waits on a client: each client has
// its own queue drained by a writer goroutine, and messages for a full queue
// are dropped.
type TelemetryHub struct {
	limiter *rate.Limiter
	clients map[*telemetryClient]bool
	mu      sync.Mutex
	log     *logrus.Entry
}

type telemetryClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewTelemetryHub creates a hub sending at most perSecond messages per second.
func NewTelemetryHub(perSecond float64, logger *logrus.Logger) *TelemetryHub {
	if perSecond <= 0 {
		perSecond = DefaultTelemetryRate
	}
	return &TelemetryHub{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		clients: make(map[*telemetryClient]bool),
		log:     logger.WithField("component", "telemetry"),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *TelemetryHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &telemetryClient{
		conn: conn,
		send: make(chan []byte, telemetryQueueSize),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)

	// Reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *TelemetryHub) register(c *telemetryClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// unregister removes c and closes its queue, which stops its writer.
func (h *TelemetryHub) unregister(c *telemetryClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// writePump is the only writer of c.conn. A failed write closes the
// connection so the read loop in ServeHTTP unregisters the client.
func (h *TelemetryHub) writePump(c *telemetryClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(telemetryWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithError(err).Debug("dropping telemetry client")
			c.conn.Close()
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *TelemetryHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues r for every client unless the rate limit is exhausted. It
// is a pipeline.Observer and returns without waiting for any write.
func (h *TelemetryHub) Publish(r pipeline.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 || !h.limiter.Allow() {
		return
	}

	msg, err := json.Marshal(newTelemetryMessage(r))
	if err != nil {
		h.log.WithError(err).Error("failed to encode telemetry")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.WithField("seq", r.Seq).Debug("telemetry queue full, message dropped")
		}
	}
}
