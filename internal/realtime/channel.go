// Package realtime maintains the persistent event connection to the
// dispatch backend: ride offers in, decisions and availability out.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/models"
	"github.com/example/driver-agent/internal/observability"
)

// Event is the closed set of wire event tags. Arbitrary strings are
// not accepted; exhaustiveness stays checkable.
type Event string

const (
	EventRideRequest     Event = "ride:request"
	EventRideStatus      Event = "ride:statusUpdate"
	EventAvailabilityAck Event = "driver:availability:ack"

	EventRideAccepted Event = "ride:accepted"
	EventRideRejected Event = "ride:rejected"
	EventAvailability Event = "driver:availability"
)

// Handler consumes one inbound event payload. Handlers for the same
// event run in registration order on the read-loop goroutine.
type Handler func(payload json.RawMessage)

type frame struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ReconnectPolicy bounds automatic redialing after a failed dial or a
// dropped connection. Zero MaxAttempts disables it; the owner then
// decides when to call Connect again.
type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

var ErrClosed = errors.New("realtime channel closed")

// Channel is a persistent bidirectional websocket connection with a
// typed publish/subscribe registry. One Channel per agent; handed to
// collaborators explicitly, never through a global.
type Channel struct {
	url       string
	header    http.Header
	dialer    *websocket.Dialer
	reconnect ReconnectPolicy
	logger    *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	state        models.ConnectionState
	connecting   bool
	reconnecting bool // a reconnectLoop is already running
	closed       bool
	nextSubID    int
	handlers     map[Event][]subscription

	writeMu sync.Mutex
}

type subscription struct {
	id int
	fn Handler
}

func NewChannel(url string, session models.DriverSession, reconnect ReconnectPolicy, logger *slog.Logger) *Channel {
	h := http.Header{}
	if session.Token != "" {
		h.Set("Authorization", "Bearer "+session.Token)
	}
	return &Channel{
		url:       url,
		header:    h,
		dialer:    websocket.DefaultDialer,
		reconnect: reconnect,
		logger:    logger,
		state:     models.ConnectionState{State: models.Disconnected},
		handlers:  make(map[Event][]subscription),
	}
}

// Connect dials the backend. Idempotent: a call while connected or
// while another connect is in flight is a no-op. A failed dial returns
// the error and, when a reconnect policy is configured, keeps redialing
// in the background within that budget.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connecting || c.state.State == models.Connected {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.state = models.ConnectionState{State: models.Connecting}
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.state = models.ConnectionState{State: models.Disconnected, LastError: err.Error()}
		retry := c.reconnect.MaxAttempts > 0 && !c.reconnecting && !c.closed
		if retry {
			c.reconnecting = true
		}
		c.mu.Unlock()
		if retry {
			go c.reconnectLoop(c.reconnect)
		}
		return agenterr.Network("realtime.connect", 1, err)
	}
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = models.ConnectionState{State: models.Connected}
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Subscribe registers a handler for an event tag and returns an id for
// Unsubscribe.
func (c *Channel) Subscribe(e Event, h Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	c.handlers[e] = append(c.handlers[e], subscription{id: c.nextSubID, fn: h})
	return c.nextSubID
}

func (c *Channel) Unsubscribe(e Event, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.handlers[e]
	for i, s := range subs {
		if s.id == id {
			c.handlers[e] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish is fire-and-forget. While disconnected the event is dropped
// and logged; offline queueing belongs to the backend collaborator.
func (c *Channel) Publish(e Event, payload any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state.State == models.Connected
	c.mu.Unlock()

	if !connected || conn == nil {
		observability.EventsDropped.Inc()
		c.logger.Warn("dropping outbound event while disconnected", "event", string(e))
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("event payload not serializable", "event", string(e), "error", err)
		return
	}
	c.writeMu.Lock()
	err = conn.WriteJSON(frame{Event: e, Payload: b})
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("event write failed", "event", string(e), "error", err)
	}
}

// State returns a read-only snapshot of the connection state.
func (c *Channel) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the connection down and stops reconnection.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = models.ConnectionState{State: models.Disconnected}
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("malformed inbound frame", "error", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Channel) dispatch(f frame) {
	c.mu.Lock()
	subs := make([]subscription, len(c.handlers[f.Event]))
	copy(subs, c.handlers[f.Event])
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(f.Payload)
	}
}

func (c *Channel) handleDisconnect(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = models.ConnectionState{State: models.Disconnected, LastError: cause.Error()}
	policy := c.reconnect
	retry := policy.MaxAttempts > 0 && !c.reconnecting
	if retry {
		c.reconnecting = true
	}
	c.mu.Unlock()

	c.logger.Warn("realtime channel disconnected", "error", cause)
	if retry {
		go c.reconnectLoop(policy)
	}
}

// reconnectLoop makes a bounded number of attempts with increasing
// delay, never a tight loop. If the budget runs out the channel stays
// Disconnected until the owner calls Connect.
func (c *Channel) reconnectLoop(policy ReconnectPolicy) {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * delay)
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		observability.ChannelReconnects.Inc()
		if err := c.Connect(context.Background()); err == nil {
			c.logger.Info("realtime channel reconnected", "attempt", attempt)
			return
		}
	}
	c.logger.Error("reconnect budget exhausted", "attempts", policy.MaxAttempts)
}
