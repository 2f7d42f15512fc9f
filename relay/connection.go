package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/heritagestreams/errors"
)

// connection tracks one relay endpoint across dials. Each successful dial
// opens a new session.
type connection struct {
	url string

	mu       sync.RWMutex
	status   ConnectionStatus
	lastSeen time.Time
	latency  time.Duration
	lastErr  error
	sess     *session

	// gorilla/websocket supports one concurrent writer
	writeMu sync.Mutex
}

// session is one open socket with its read and dispatch goroutines.
type session struct {
	ws      *websocket.Conn
	inbound chan []byte
	done    chan struct{}
	// readErr is written before inbound is closed
	readErr error
}

func newConnection(url string) *connection {
	return &connection{url: url, status: StatusDisconnected}
}

func (c *connection) open(ws *websocket.Conn, latency time.Duration) *session {
	s := &session{
		ws:      ws,
		inbound: make(chan []byte, defaultInboundBuffer),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.sess
	c.sess = s
	c.status = StatusConnected
	c.latency = latency
	c.lastSeen = time.Now()
	c.lastErr = nil
	c.mu.Unlock()

	// A lost session keeps its socket until the relay is redialed.
	if prev != nil {
		_ = prev.ws.Close()
	}
	return s
}

func (c *connection) setStatus(status ConnectionStatus, err error) {
	c.mu.Lock()
	c.status = status
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()
}

func (c *connection) currentStatus() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *connection) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *connection) info() ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := ConnectionInfo{
		URL:      c.url,
		Status:   c.status,
		LastSeen: c.lastSeen,
		Latency:  c.latency,
	}
	if c.lastErr != nil {
		info.LastError = c.lastErr.Error()
	}
	return info
}

func (c *connection) write(frame []byte, timeout time.Duration) error {
	c.mu.RLock()
	status, s := c.status, c.sess
	c.mu.RUnlock()

	if status != StatusConnected || s == nil {
		return fmt.Errorf("%w: %s is %s", errors.ErrNotConnected, c.url, status)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := s.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
	}
	if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
	}
	return nil
}

// readLoop pushes raw frames into the session's inbound channel until the
// socket errors. The dispatch loop drains the channel before handling the close.
func (c *connection) readLoop(s *session) {
	defer close(s.inbound)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.readErr = err
			return
		}
		c.touch()
		s.inbound <- data
	}
}

// shutdown closes the current session and marks the connection disconnected.
// It reports false when the connection was already disconnected.
func (c *connection) shutdown(timeout time.Duration) bool {
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		return false
	}
	s := c.sess
	c.sess = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if s == nil {
		return true
	}

	c.writeMu.Lock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = s.ws.Close()

	select {
	case <-s.done:
	case <-time.After(timeout):
	}
	return true
}

// markLost records an unexpected close of s. It returns nil when s is no
// longer the active session or the close was initiated locally.
func (c *connection) markLost(s *session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != s || c.status != StatusConnected {
		return nil
	}
	err := errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, s.readErr),
		"Pool", "readLoop", "read frame")
	c.status = StatusFailed
	c.lastErr = err
	return err
}
