// Package wshub serves the live per-debate event stream over WebSocket
// (spec §4.4). Each connection is a bounded, drop-on-full fan-out
// consumer of the Event Bus, grounded on the teacher's NotificationHub
// subscriber/worker-pool idiom but built directly on top of the
// already-durable events.Bus rather than its own parallel pub-sub.
package wshub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/models"
)

// Snapshotter produces the point-in-time state sent in the initial
// `sync` frame, ahead of the live tail (spec §6 "client sends a
// subscribe frame... then receives sync then live events").
type Snapshotter interface {
	Snapshot(ctx context.Context, debateID string) (map[string]interface{}, error)
}

// subscribeFrame is the single client->server message this protocol
// defines.
type subscribeFrame struct {
	DebateID string   `json:"debate_id,omitempty"`
	Types    []string `json:"types,omitempty"`
}

// Config tunes connection limits and timeouts (spec §4.4 "bounded
// per-connection queue"), mirroring the field names implied by the
// teacher's WebSocketConfig.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	QueueSize       int
	AllowedOrigins  []string
}

// DefaultConfig matches the teacher's DefaultWebSocketConfig.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageSize:  512 * 1024,
		QueueSize:       256,
	}
}

// Hub upgrades HTTP requests to WebSocket connections and relays one
// debate's event stream to each. It holds no events of its own; it is
// a registry of live connections plus the bus they read from.
type Hub struct {
	bus      *events.Bus
	cfg      Config
	upgrader websocket.Upgrader
	log      *logrus.Logger
	sync     Snapshotter

	mu    sync.Mutex
	conns map[string]*connection
}

// New constructs a Hub reading from bus. sync may be nil, in which case
// connections skip straight to the live tail with no sync frame.
func New(bus *events.Bus, cfg Config, log *logrus.Logger, sync Snapshotter) *Hub {
	if cfg.QueueSize <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.New()
	}
	h := &Hub{
		bus:   bus,
		cfg:   cfg,
		log:   log,
		sync:  sync,
		conns: make(map[string]*connection),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ActiveConnections returns the current live-connection count. Nothing
// copies it to the SubscribersGauge metric.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// connection is one live WebSocket client subscribed to a single
// debate's event stream, fanned out via a PolicyDrop events.Subscriber
// so a slow client never backs up the bus (spec §4.4 "drop-on-full").
type connection struct {
	id       string
	debateID string
	ws       *websocket.Conn
	sub      *events.Subscriber
	hub      *Hub
	done     chan struct{}
	closeOne sync.Once
}

// Serve upgrades the request, reads the client's one subscribe frame,
// sends a sync snapshot, then blocks relaying live events until the
// connection closes (spec §6: "client sends a JSON subscribe frame...
// then receives sync then live events").
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(h.cfg.MaxMessageSize)

	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	var sub subscribeFrame
	if err := ws.ReadJSON(&sub); err != nil {
		_ = ws.Close()
		return err
	}

	filter := events.Filter{DebateID: sub.DebateID}
	if len(sub.Types) > 0 {
		filter.Types = make(map[models.EventType]bool, len(sub.Types))
		for _, t := range sub.Types {
			filter.Types[models.EventType(t)] = true
		}
	}
	eventSub := h.bus.Subscribe(filter, events.PolicyDrop)

	c := &connection{
		id:       eventSub.ID(),
		debateID: sub.DebateID,
		ws:       ws,
		sub:      eventSub,
		hub:      h,
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	if h.sync != nil {
		data, err := h.sync.Snapshot(r.Context(), sub.DebateID)
		if err != nil {
			h.log.WithError(err).Debug("ws sync snapshot failed")
		} else {
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			_ = ws.WriteJSON(&models.Event{
				Type:      models.EventSync,
				DebateID:  sub.DebateID,
				Timestamp: time.Now(),
				Data:      data,
			})
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go c.writeLoop(&wg)
	go c.readLoop(&wg)
	wg.Wait()

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	h.bus.Unsubscribe(eventSub)
	return nil
}

// writeLoop drains the subscriber's event queue to the socket and sends
// periodic pings, grounded on the teacher's dispatchNotification loop.
func (c *connection) writeLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case e, ok := <-c.sub.Events():
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.ws.WriteJSON(e); err != nil {
				c.hub.log.WithError(err).WithField("conn", c.id).Debug("ws write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop's only job is to detect client disconnects and pongs; the
// protocol is server-push only (spec §4.4 names no client->server
// message type).
func (c *connection) readLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	defer c.close()

	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *connection) close() {
	c.closeOne.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
