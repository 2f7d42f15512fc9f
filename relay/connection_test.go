package relay

import (
	stderrors "errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/heritagestreams/testutil"
)

func TestConnection_OpenClosesPreviousSocket(t *testing.T) {
	r := testutil.NewRelay(t)

	dial := func() *websocket.Conn {
		ws, resp, err := websocket.DefaultDialer.Dial(r.URL(), nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return ws
	}

	c := newConnection(r.URL())
	first := c.open(dial(), time.Millisecond)
	c.setStatus(StatusFailed, nil)

	second := c.open(dial(), time.Millisecond)
	t.Cleanup(func() { _ = second.ws.Close() })
	assert.Equal(t, StatusConnected, c.currentStatus())

	_ = first.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, net.ErrClosed), "previous socket should be closed, got %v", err)
}
