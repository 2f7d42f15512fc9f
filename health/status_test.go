package health

import (
	"strings"
	"testing"
	"time"

	"github.com/c360/heritagestreams/relay"
)

func relayStatus(states ...relay.ConnectionStatus) relay.Status {
	ps := relay.Status{Total: len(states)}
	for i, st := range states {
		if st == relay.StatusConnected {
			ps.Connected++
		}
		ps.Relays = append(ps.Relays, relay.ConnectionInfo{
			URL:    "wss://relay" + string(rune('a'+i)) + ".example",
			Status: st,
		})
	}
	return ps
}

func TestFromRelayStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  relay.Status
		want    string
		message string
	}{
		{
			name:    "all connected",
			status:  relayStatus(relay.StatusConnected, relay.StatusConnected),
			want:    StatusHealthy,
			message: "2 of 2 relays connected",
		},
		{
			name:    "some connected",
			status:  relayStatus(relay.StatusConnected, relay.StatusFailed, relay.StatusDisconnected),
			want:    StatusDegraded,
			message: "1 of 3 relays connected",
		},
		{
			name:    "none connected",
			status:  relayStatus(relay.StatusFailed, relay.StatusConnecting),
			want:    StatusUnhealthy,
			message: "0 of 2 relays connected",
		},
		{
			name:    "no relays configured",
			status:  relay.Status{},
			want:    StatusUnhealthy,
			message: "0 of 0 relays connected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRelayStatus("relays", tt.status)
			if got.Status != tt.want {
				t.Errorf("FromRelayStatus().Status = %q, want %q", got.Status, tt.want)
			}
			if got.Message != tt.message {
				t.Errorf("FromRelayStatus().Message = %q, want %q", got.Message, tt.message)
			}
			if got.Healthy != (tt.want == StatusHealthy) {
				t.Errorf("FromRelayStatus().Healthy = %v", got.Healthy)
			}
			if len(got.SubStatuses) != len(tt.status.Relays) {
				t.Fatalf("got %d sub-statuses, want %d", len(got.SubStatuses), len(tt.status.Relays))
			}
		})
	}
}

func TestFromRelayStatus_SubStatuses(t *testing.T) {
	seen := time.Now()
	ps := relay.Status{
		Connected: 1,
		Total:     3,
		Relays: []relay.ConnectionInfo{
			{URL: "wss://a.example", Status: relay.StatusConnected, Latency: 40 * time.Millisecond, LastSeen: seen},
			{URL: "wss://b.example", Status: relay.StatusConnecting},
			{URL: "wss://c.example", Status: relay.StatusFailed, LastError: "dial tcp 10.0.0.7:443: connection refused"},
		},
	}

	got := FromRelayStatus("relays", ps)

	a, b, c := got.SubStatuses[0], got.SubStatuses[1], got.SubStatuses[2]
	if a.Component != "wss://a.example" || !a.IsHealthy() {
		t.Errorf("relay a = %+v", a)
	}
	if a.Metrics == nil || a.Metrics.Latency != 40*time.Millisecond || !a.Metrics.LastSeen.Equal(seen) {
		t.Errorf("relay a metrics = %+v", a.Metrics)
	}
	if !b.IsDegraded() {
		t.Errorf("connecting relay should be degraded, got %s", b.Status)
	}
	if !c.IsUnhealthy() {
		t.Errorf("failed relay should be unhealthy, got %s", c.Status)
	}
	if strings.Contains(c.Message, "10.0.0.7") || !strings.HasPrefix(c.Message, "failed: ") {
		t.Errorf("relay c message not sanitized: %q", c.Message)
	}
}

func TestStatus_Level(t *testing.T) {
	if got := NewHealthy("x", "").Level(); got != 2 {
		t.Errorf("healthy level = %d", got)
	}
	if got := NewDegraded("x", "").Level(); got != 1 {
		t.Errorf("degraded level = %d", got)
	}
	if got := NewUnhealthy("x", "").Level(); got != 0 {
		t.Errorf("unhealthy level = %d", got)
	}
	if got := (Status{}).Level(); got != 0 {
		t.Errorf("empty level = %d", got)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StatusHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StatusDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("system", tt.subs)
			if got.Status != tt.want {
				t.Errorf("Aggregate() = %q, want %q", got.Status, tt.want)
			}
			if got.Component != "system" {
				t.Errorf("Aggregate().Component = %q", got.Component)
			}
		})
	}
}

func TestAggregate_DoesNotModifyInput(t *testing.T) {
	subs := []Status{NewHealthy("a", "")}
	got := Aggregate("system", subs)
	got.SubStatuses[0].Message = "changed"
	if subs[0].Message == "changed" {
		t.Error("Aggregate shares the input slice")
	}
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	base := NewHealthy("parent", "").WithSubStatus(NewHealthy("one", ""))
	left := base.WithSubStatus(NewHealthy("left", ""))
	right := base.WithSubStatus(NewDegraded("right", ""))

	if left.SubStatuses[1].Component != "left" || right.SubStatuses[1].Component != "right" {
		t.Errorf("sub-statuses share backing array: %v / %v", left.SubStatuses, right.SubStatuses)
	}
	if len(base.SubStatuses) != 1 {
		t.Errorf("base modified: %d sub-statuses", len(base.SubStatuses))
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"websocket url", "dial wss://relay.example/path failed", "dial [URL] failed"},
		{"nats url", "connect nats://user@host:4222", "connect [URL]"},
		{"ip and port", "dial tcp 192.168.1.10:443: refused", "dial tcp [IP][PORT]: refused"},
		{"path", "open /etc/heritage/config.yaml: denied", "open [PATH]: denied"},
		{"token", "auth token=abc123 rejected", "auth [REDACTED] rejected"},
		{"plain", "connection reset by peer", "connection reset by peer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeErrorMessage(tt.input); got != tt.want {
				t.Errorf("sanitizeErrorMessage(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
