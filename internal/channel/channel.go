// Package channel maintains the realtime connection to the generation
// backend: one live WebSocket per active session, with heartbeat and
// reconnect-with-backoff.
package channel

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitewright-dev/sitewright/internal/eventlog"
	"github.com/sitewright-dev/sitewright/internal/logger"
	"github.com/sitewright-dev/sitewright/internal/protocol"
)

const (
	heartbeatInterval    = 30 * time.Second
	reconnectBaseDelay   = 1000 * time.Millisecond
	maxReconnectAttempts = 5
)

// Handler receives everything the channel produces. Satisfied by
// *generation.Store.
type Handler interface {
	// Apply folds one decoded event into session state.
	Apply(ev protocol.Event)
	// SetConnected reports connectivity transitions, decoupled from
	// session status.
	SetConnected(connected bool)
	// ConnectionLost reports reconnect exhaustion: a terminal failure
	// distinct from an ordinary disconnect.
	ConnectionLost(message string)
}

// Channel owns at most one live connection. Connect returns once the
// attempt is scheduled; establishment and every later transition arrive
// through the Handler.
type Channel struct {
	log     *logger.Logger
	events  *eventlog.Log
	handler Handler

	endpoint string
	dialer   *websocket.Dialer

	// Overridable in tests.
	heartbeatEvery time.Duration
	baseDelay      time.Duration
	maxAttempts    int

	mu            sync.Mutex
	sessionID     string
	conn          *websocket.Conn
	gen           int // connection generation; stale goroutines check it and bail
	attempts      int // consecutive reconnect attempts, reset on success
	explicit      bool
	heartbeatStop chan struct{}
	reconnect     *time.Timer
}

// New builds a Channel for the given stream endpoint. events may be nil.
func New(endpoint string, handler Handler, events *eventlog.Log, log *logger.Logger) *Channel {
	if log == nil {
		log = logger.Nop()
	}
	return &Channel{
		log:            log,
		events:         events,
		handler:        handler,
		endpoint:       endpoint,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeatEvery: heartbeatInterval,
		baseDelay:      reconnectBaseDelay,
		maxAttempts:    maxReconnectAttempts,
	}
}

// Connect binds the channel to sessionID and schedules the dial. Calling it
// again with the same id while bound is a no-op; a different id tears down
// the old connection first. The method returns once the attempt is
// scheduled, not once the connection is established.
func (c *Channel) Connect(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == sessionID && sessionID != "" && !c.explicit {
		// Already bound to this id (connected, dialing, or between
		// reconnect attempts).
		return
	}
	if c.sessionID != "" && c.sessionID != sessionID {
		c.teardownLocked()
	}

	c.sessionID = sessionID
	c.explicit = false
	c.attempts = 0
	c.gen++

	go c.dial(c.gen, sessionID)
}

// Disconnect closes the connection and clears the session binding. Safe to
// call repeatedly: a second call on an already-closed channel does nothing.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.explicit = true
	c.gen++
	c.stopTimersLocked()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.handler.SetConnected(false)
	}
	c.sessionID = ""
}

// Connected reports whether a connection is currently established.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// teardownLocked drops the current connection without announcing a
// connectivity failure. Caller holds the lock.
func (c *Channel) teardownLocked() {
	c.stopTimersLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.handler.SetConnected(false)
	}
}

// stopTimersLocked cancels the heartbeat and any pending reconnect.
func (c *Channel) stopTimersLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// dial attempts to open the connection for the given generation. Runs on its
// own goroutine.
func (c *Channel) dial(gen int, sessionID string) {
	addr := BuildURL(c.endpoint, sessionID)
	conn, resp, err := c.dialer.Dial(addr, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.explicit {
		// Superseded while dialing.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		c.log.Warn("stream dial failed", "addr", addr, "error", err)
		c.scheduleReconnectLocked()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.handler.SetConnected(true)
	c.record(eventlog.Record{Event: eventlog.EventChannelConnected, GenerationID: sessionID})
	c.log.Info("stream connected", "generation_id", sessionID)

	stop := make(chan struct{})
	c.heartbeatStop = stop
	go c.heartbeat(conn, stop)
	go c.readLoop(gen, conn)
}

// heartbeat sends the keep-alive frame on a fixed interval for the lifetime
// of one connection.
func (c *Channel) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.PingFrame)); err != nil {
				// The read loop sees the same failure and drives the
				// reconnect; nothing else to do here.
				c.log.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// readLoop decodes inbound frames in delivery order until the connection
// drops.
func (c *Channel) readLoop(gen int, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onClosed(gen, err)
			return
		}

		ev, decodeErr := protocol.Decode(data, time.Now())
		if decodeErr != nil {
			// A malformed frame is logged and discarded; it never tears
			// down the channel.
			c.log.Warn("discarding malformed frame", "error", decodeErr)
			c.record(eventlog.Record{Event: eventlog.EventFrameDropped, Reason: decodeErr.Error()})
			continue
		}

		switch ev.Kind {
		case protocol.KindPong:
			c.log.Debug("heartbeat acknowledged")
		case protocol.KindConnection:
			c.log.Debug("stream subscription acknowledged", "generation_id", ev.GenerationID)
		case protocol.KindUnknown:
			c.log.Warn("discarding unknown frame type", "type", ev.RawType)
			c.record(eventlog.Record{Event: eventlog.EventFrameDropped, FrameType: ev.RawType, Reason: "unknown type"})
		default:
			c.handler.Apply(ev)
		}
	}
}

// onClosed handles a connection drop seen by the read loop.
func (c *Channel) onClosed(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	c.conn = nil
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.handler.SetConnected(false)
	c.record(eventlog.Record{Event: eventlog.EventChannelClosed, GenerationID: c.sessionID, Reason: err.Error()})

	if c.explicit {
		return
	}

	c.log.Warn("stream closed unexpectedly", "generation_id", c.sessionID, "error", err)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the next backoff attempt, or gives up for
// good once the attempt budget is spent. Caller holds the lock.
func (c *Channel) scheduleReconnectLocked() {
	c.attempts++
	if c.attempts > c.maxAttempts {
		c.log.Error("reconnect attempts exhausted", "generation_id", c.sessionID, "attempts", c.maxAttempts)
		c.sessionID = ""
		c.handler.ConnectionLost("connection to generation service lost")
		return
	}

	delay := backoffDelay(c.baseDelay, c.attempts)
	c.record(eventlog.Record{
		Event:        eventlog.EventReconnectAttempt,
		GenerationID: c.sessionID,
		Attempt:      c.attempts,
	})
	c.log.Info("scheduling reconnect", "attempt", c.attempts, "delay", delay)

	gen := c.gen
	sessionID := c.sessionID
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := gen != c.gen || c.explicit
		c.mu.Unlock()
		if stale {
			return
		}
		c.dial(gen, sessionID)
	})
}

// backoffDelay returns base * 2^(attempt-1).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

func (c *Channel) record(rec eventlog.Record) {
	if c.events == nil {
		return
	}
	if err := c.events.Append(rec); err != nil {
		c.log.Debug("event trace append failed", "error", err)
	}
}
