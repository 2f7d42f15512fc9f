package relay

import "time"

// ConnectionStatus is the lifecycle state of one relay connection.
type ConnectionStatus int

const (
	// StatusConnecting is set while the dial is in flight
	StatusConnecting ConnectionStatus = iota
	// StatusConnected means frames can be sent and are being read
	StatusConnected
	// StatusFailed means the dial failed or the connection dropped
	StatusFailed
	// StatusDisconnected means the connection was closed locally or never opened
	StatusDisconnected
)

// String returns the string representation of the status
func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionInfo is a point-in-time view of one relay connection.
type ConnectionInfo struct {
	URL       string           `json:"url"`
	Status    ConnectionStatus `json:"status"`
	LastSeen  time.Time        `json:"last_seen,omitempty"`
	Latency   time.Duration    `json:"latency"`
	LastError string           `json:"last_error,omitempty"`
}

// Status is a snapshot of the pool, not a stream.
type Status struct {
	Connected int              `json:"connected"`
	Total     int              `json:"total"`
	Relays    []ConnectionInfo `json:"relays"`
}
